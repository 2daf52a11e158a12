/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playstate

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	dbpkg "github.com/friendsincode/grimnir_channel/internal/db"
	"github.com/friendsincode/grimnir_channel/internal/models"
)

// SQLStore keeps played items as rows through gorm.
type SQLStore struct {
	db    *gorm.DB
	close func() error
}

// NewSQLStore wraps an open database. closer, when non-nil, runs on Close.
func NewSQLStore(database *gorm.DB, closer func() error) (*SQLStore, error) {
	if err := dbpkg.Migrate(database); err != nil {
		return nil, err
	}
	return &SQLStore{db: database, close: closer}, nil
}

// Load reads every played row.
func (s *SQLStore) Load(ctx context.Context) (State, error) {
	var rows []models.PlayedItem
	if err := s.db.WithContext(ctx).Order("schedule, category, path").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query played items: %w", err)
	}
	state := State{}
	for _, r := range rows {
		cats, ok := state[r.Schedule]
		if !ok {
			cats = make(map[models.Category][]string)
			state[r.Schedule] = cats
		}
		cats[r.Category] = append(cats[r.Category], r.Path)
	}
	return state, nil
}

// Save replaces all rows in one transaction.
func (s *SQLStore) Save(ctx context.Context, state State) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.PlayedItem{}).Error; err != nil {
			return err
		}
		var rows []models.PlayedItem
		for schedule, cats := range state {
			for cat, paths := range cats {
				for _, p := range paths {
					rows = append(rows, models.PlayedItem{Schedule: schedule, Category: cat, Path: p})
				}
			}
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 200).Error
	})
}

// Close runs the closer supplied at construction.
func (s *SQLStore) Close() error {
	if s.close != nil {
		return s.close()
	}
	return nil
}
