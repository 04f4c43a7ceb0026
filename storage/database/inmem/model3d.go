package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/core/model3d"
)

type modelRepository struct {
	db *modelTable
}

var _ model3d.Repository = (*modelRepository)(nil) // interface compliance check

func NewModelRepository(db *DB) *modelRepository {
	return &modelRepository{db: db.model}
}

func (repo *modelRepository) CreateModel(_ context.Context, mdl model3d.Model) (model3d.Model, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	mdl.ID = uuid.New().String()
	repo.db.table[mdl.ID] = &mdl
	return mdl, nil
}

func (repo *modelRepository) GetModel(_ context.Context, id string) (model3d.Model, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if mdl, ok := repo.db.table[id]; ok {
		return *mdl, nil
	}
	return model3d.Model{}, model3d.ErrNotFound
}

func (repo *modelRepository) QueryModels(_ context.Context, filter *model3d.QueryFilter, ordering []core.DBOrdering) ([]model3d.Model, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	models := make([]model3d.Model, 0, len(repo.db.table))
	for _, mdl := range repo.db.table {
		if filter != nil {
			if filter.UploadedBy != "" && mdl.UploadedBy != filter.UploadedBy {
				continue
			}
			if filter.Subject != "" && mdl.Subject != filter.Subject {
				continue
			}
		}
		models = append(models, *mdl)
	}

	sortBy(len(models), ordering, core.DBOrdering{Field: "created_at"},
		func(i int, field string) interface{} {
			switch field {
			case "title":
				return models[i].Title
			case "subject":
				return models[i].Subject
			case "created_at":
				return models[i].CreatedAt
			}
			return nil
		},
		func(i, j int) { models[i], models[j] = models[j], models[i] },
	)
	return models, nil
}
