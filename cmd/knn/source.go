// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/gorse-io/knn/catalog"
	"github.com/gorse-io/knn/common/log"
	"github.com/gorse-io/knn/config"
	"github.com/gorse-io/knn/dataset"
	"github.com/gorse-io/knn/logics"
	"github.com/gorse-io/knn/storage"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// source holds the loaded ratings and catalog, and the database if configured.
type source struct {
	data     *dataset.Dataset
	catalog  *catalog.Catalog
	database *storage.Database
}

// openSource loads ratings from the ratings file if given, otherwise from the
// database. The catalog is loaded the same way and is empty if neither is set.
func openSource(ctx context.Context, conf *config.Config, progress bool) (*source, error) {
	start := time.Now()
	s := &source{catalog: catalog.New()}
	var err error
	if conf.Data.Database != "" {
		log.Logger().Info("connect database", zap.String("database", log.RedactDBURL(conf.Data.Database)))
		if s.database, err = storage.Open(conf.Data.Database, conf.Data.TablePrefix); err != nil {
			return nil, errors.Trace(err)
		}
		log.Logger().Debug("database connected", zap.Stringer("driver", s.database.Driver()))
		if err = s.database.Init(); err != nil {
			s.Close()
			return nil, errors.Trace(err)
		}
	}
	opts := storage.LoadOptions{
		Separator:     conf.Data.Separator,
		SkipHeader:    conf.Data.SkipHeader,
		SkipMalformed: conf.Data.SkipMalformed,
		Progress:      progress,
	}
	if conf.Data.Ratings != "" {
		s.data, err = storage.LoadRatings(conf.Data.Ratings, opts)
	} else {
		s.data, err = s.database.LoadRatings(ctx)
	}
	if err != nil {
		s.Close()
		return nil, errors.Annotate(err, "failed to load ratings")
	}
	if conf.Data.Catalog != "" {
		opts.Separator = conf.Data.CatalogSeparator
		s.catalog, err = storage.LoadCatalog(conf.Data.Catalog, opts)
	} else if s.database != nil {
		s.catalog, err = s.database.LoadCatalog(ctx)
	}
	if err != nil {
		s.Close()
		return nil, errors.Annotate(err, "failed to load catalog")
	}
	log.Logger().Info("load dataset",
		zap.Int("n_users", s.data.CountUsers()),
		zap.Int("n_items", s.data.CountItems()),
		zap.Int("n_ratings", s.data.CountRatings()),
		zap.Int("n_catalog_items", s.catalog.Len()),
		zap.Int("n_categories", s.catalog.Categories().Cardinality()),
		zap.Duration("load_time", time.Since(start)))
	return s, nil
}

func (s *source) Close() {
	if s.database != nil {
		if err := s.database.Close(); err != nil {
			log.Logger().Warn("failed to close database", zap.Error(err))
		}
	}
}

func (s *source) newRecommender(conf config.RecommendConfig) (*logics.Recommender, error) {
	var opts []logics.Option
	if conf.Filter != "" {
		filter, err := catalog.NewFilter(s.catalog, conf.Filter)
		if err != nil {
			return nil, errors.Trace(err)
		}
		opts = append(opts, logics.WithItemFilter(filter.Func()))
	}
	return logics.NewRecommender(s.data, conf, opts...)
}

// rows joins recommendations with the catalog.
func (s *source) rows(userId string, recommendations []logics.Recommendation) []storage.Row {
	return lo.Map(recommendations, func(r logics.Recommendation, _ int) storage.Row {
		item, _ := s.catalog.Lookup(r.ItemId)
		return storage.Row{
			UserId:   userId,
			ItemId:   r.ItemId,
			Name:     item.Name,
			Category: item.Category,
			Score:    r.Score,
		}
	})
}

func writeTable(w io.Writer, rows []storage.Row, withUser bool) error {
	header := []string{"item", "name", "category", "score"}
	if withUser {
		header = append([]string{"user"}, header...)
	}
	table := tablewriter.NewWriter(w)
	table.Header(lo.ToAnySlice(header)...)
	for _, row := range rows {
		line := []string{row.ItemId, row.Name, row.Category, strconv.FormatFloat(row.Score, 'f', 4, 64)}
		if withUser {
			line = append([]string{row.UserId}, line...)
		}
		if err := table.Append(line); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

func writeCSVFile(path string, rows []storage.Row, withUser bool) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	if err = storage.WriteCSV(file, rows, withUser); err != nil {
		_ = file.Close()
		return errors.Trace(err)
	}
	log.Logger().Info("write results", zap.String("path", path), zap.Int("n_rows", len(rows)))
	return errors.Trace(file.Close())
}

func writeMetrics(path string) error {
	if path == "" {
		return nil
	}
	return errors.Trace(prometheus.WriteToTextfile(path, prometheus.DefaultGatherer))
}
