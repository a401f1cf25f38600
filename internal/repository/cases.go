// Package repository persists cases with gorm. It is the only code that
// talks to the database.
package repository

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/hashicorp/go-set/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/caseflow/pkg/models"
)

// ListFilter narrows ListCases. Zero values mean "any".
type ListFilter struct {
	ClientID *uuid.UUID
	// LawyerID matches the assigned lawyer, or the claiming lawyer while no
	// lawyer is assigned yet.
	LawyerID     *uuid.UUID
	Statuses     []models.CaseStatus
	Unclaimed    bool
	ProcessType  string
	CreatedSince *time.Time
	Page         int
	PageSize     int
}

type CaseStore struct {
	db *gorm.DB
}

func NewCaseStore(db *gorm.DB) *CaseStore {
	return &CaseStore{db: db}
}

/* ================================ Writes ================================= */

// Create inserts a new case with its documents and timeline.
func (s *CaseStore) Create(ctx context.Context, cs *models.Case) error {
	if cs.Version == 0 {
		cs.Version = 1
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(cs).Error; err != nil {
			return errors.Wrap(err, "insert case")
		}
		if err := insertDocuments(tx, cs.Documents); err != nil {
			return err
		}
		if len(cs.Timeline) > 0 {
			if err := tx.Create(&cs.Timeline).Error; err != nil {
				return errors.Wrap(err, "insert timeline")
			}
		}
		return nil
	})
}

// Save persists cs if the stored version still equals expected, and bumps
// the version. Timeline rows are only ever inserted; documents removed from
// cs are deleted and only their review marker is ever updated.
func (s *CaseStore) Save(ctx context.Context, cs *models.Case, expected int) error {
	next := expected + 1
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the row so concurrent writers queue behind us (no-op on SQLite).
		var current models.Case
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "version").
			First(&current, "id = ?", cs.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrCaseNotFound
			}
			return errors.Wrap(err, "lock case")
		}
		if current.Version != expected {
			return models.ErrStaleVersion
		}

		res := tx.Model(&models.Case{}).
			Where("id = ? AND version = ?", cs.ID, expected).
			Updates(map[string]any{
				"lawyer_id":          cs.LawyerID,
				"claimed_by":         cs.ClaimedBy,
				"title":              cs.Title,
				"description":        cs.Description,
				"process_type":       cs.ProcessType,
				"urgency":            cs.Urgency,
				"current_situation":  cs.CurrentSituation,
				"objectives":         cs.Objectives,
				"status":             cs.Status,
				"documents_required": cs.DocumentsRequired,
				"documents_baseline": cs.DocumentsBaseline,
				"version":            next,
				"updated_at":         cs.UpdatedAt,
			})
		if res.Error != nil {
			return errors.Wrap(res.Error, "update case")
		}
		if res.RowsAffected == 0 {
			return models.ErrStaleVersion
		}

		if err := syncDocuments(tx, cs); err != nil {
			return err
		}
		if len(cs.Timeline) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&cs.Timeline).Error; err != nil {
				return errors.Wrap(err, "append timeline")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	cs.Version = next
	return nil
}

// syncDocuments deletes documents no longer on cs, updates the review marker
// of the ones already stored for this case, and inserts the rest. A new
// document whose id or content belongs to any stored document is refused.
func syncDocuments(tx *gorm.DB, cs *models.Case) error {
	keep := make([]uuid.UUID, 0, len(cs.Documents))
	for _, d := range cs.Documents {
		keep = append(keep, d.ID)
	}

	del := tx.Where("case_id = ?", cs.ID)
	if len(keep) > 0 {
		del = del.Where("id NOT IN ?", keep)
	}
	if err := del.Delete(&models.Document{}).Error; err != nil {
		return errors.Wrap(err, "delete documents")
	}

	var stored []uuid.UUID
	if err := tx.Model(&models.Document{}).Where("case_id = ?", cs.ID).Pluck("id", &stored).Error; err != nil {
		return errors.Wrap(err, "list documents")
	}
	known := set.From(stored)

	var fresh []models.Document
	for _, d := range cs.Documents {
		if !known.Contains(d.ID) {
			fresh = append(fresh, d)
			continue
		}
		if err := tx.Model(&models.Document{}).
			Where("id = ? AND case_id = ?", d.ID, cs.ID).
			Update("review", d.Review).Error; err != nil {
			return errors.Wrap(err, "update document review")
		}
	}
	return insertDocuments(tx, fresh)
}

func insertDocuments(tx *gorm.DB, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(docs))
	contents := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
		contents = append(contents, d.Content)
	}
	var taken int64
	if err := tx.Model(&models.Document{}).
		Where("id IN ? OR content IN ?", ids, contents).
		Count(&taken).Error; err != nil {
		return errors.Wrap(err, "check documents")
	}
	if taken > 0 {
		return errors.Wrapf(models.ErrDocumentTaken, "%d of %d new documents", taken, len(docs))
	}
	if err := tx.Create(&docs).Error; err != nil {
		return errors.Wrap(err, "insert documents")
	}
	return nil
}

/* ================================= Reads ================================= */

// Get loads a case with documents in upload order and the timeline in append order.
func (s *CaseStore) Get(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	var cs models.Case
	err := s.db.WithContext(ctx).
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Timeline", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		First(&cs, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrCaseNotFound
		}
		return nil, errors.Wrap(err, "load case")
	}
	return &cs, nil
}

// CaseIDForDocument resolves the case owning a document.
func (s *CaseStore) CaseIDForDocument(ctx context.Context, documentID uuid.UUID) (uuid.UUID, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).Select("id", "case_id").First(&doc, "id = ?", documentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, models.ErrDocumentNotFound
		}
		return uuid.Nil, errors.Wrap(err, "load document")
	}
	return doc.CaseID, nil
}

// List returns one page of cases, newest first, without documents or timeline.
func (s *CaseStore) List(ctx context.Context, f ListFilter) ([]models.Case, int64, error) {
	page, size := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}

	filter := func(q *gorm.DB) *gorm.DB {
		if f.ClientID != nil {
			q = q.Where("client_id = ?", *f.ClientID)
		}
		if f.LawyerID != nil {
			q = q.Where("(lawyer_id = ? OR (lawyer_id IS NULL AND claimed_by = ?))", *f.LawyerID, *f.LawyerID)
		}
		if len(f.Statuses) > 0 {
			q = q.Where("status IN ?", f.Statuses)
		}
		if f.Unclaimed {
			q = q.Where("claimed_by IS NULL")
		}
		if f.ProcessType != "" {
			q = q.Where("process_type = ?", f.ProcessType)
		}
		if f.CreatedSince != nil {
			q = q.Where("created_at >= ?", *f.CreatedSince)
		}
		return q
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Case{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count cases")
	}

	list := make([]models.Case, 0, size)
	if err := s.db.WithContext(ctx).Scopes(filter).
		Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&list).Error; err != nil {
		return nil, 0, errors.Wrap(err, "list cases")
	}
	return list, total, nil
}
