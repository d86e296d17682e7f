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


package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/gorse-io/knn/catalog"
	"github.com/gorse-io/knn/common/log"
	"github.com/gorse-io/knn/dataset"
	"github.com/gorse-io/knn/logics"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	"github.com/samber/lo"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
	"moul.io/zapgorm2"
)

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
)

func (d SQLDriver) String() string {
	switch d {
	case MySQL:
		return "mysql"
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	}
	return "unknown"
}

// SQLRating is a row of the ratings table.
type SQLRating struct {
	UserId string  `gorm:"column:user_id;type:varchar(256) not null;primaryKey"`
	ItemId string  `gorm:"column:item_id;type:varchar(256) not null;primaryKey"`
	Rating float64 `gorm:"column:rating;type:double precision not null"`
}

// SQLItem is a row of the items table.
type SQLItem struct {
	ItemId   string `gorm:"column:item_id;type:varchar(256) not null;primaryKey"`
	Name     string `gorm:"column:name;type:text not null"`
	Category string `gorm:"column:category;type:text not null"`
}

// SQLRecommendation is a row of the recommendations table. Ranking starts from 1.
type SQLRecommendation struct {
	UserId  string  `gorm:"column:user_id;type:varchar(256) not null;primaryKey"`
	Ranking int     `gorm:"column:ranking;type:integer not null;primaryKey;autoIncrement:false"`
	ItemId  string  `gorm:"column:item_id;type:varchar(256) not null"`
	Score   float64 `gorm:"column:score;type:double precision not null"`
}

// Database stores ratings, the item catalog and recommendation results in a
// SQL database.
type Database struct {
	TablePrefix
	gormDB *gorm.DB
	client *sql.DB
	driver SQLDriver
}

// Open a connection to a database.
func Open(path, tablePrefix string) (*Database, error) {
	var err error
	database := &Database{TablePrefix: TablePrefix(tablePrefix)}
	if strings.HasPrefix(path, MySQLPrefix) {
		name := path[len(MySQLPrefix):]
		if name, err = AppendMySQLParams(name, map[string]string{
			"sql_mode": "'ONLY_FULL_GROUP_BY,STRICT_TRANS_TABLES,ERROR_FOR_DIVISION_BY_ZERO,NO_ENGINE_SUBSTITUTION'",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		database.driver = MySQL
		if database.client, err = otelsql.Open("mysql", name,
			otelsql.WithAttributes(semconv.DBSystemMySQL),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: database.client}), NewGORMConfig(tablePrefix))
		if err != nil {
			_ = database.client.Close()
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, PostgresPrefix) || strings.HasPrefix(path, PostgreSQLPrefix) {
		database.driver = Postgres
		if database.client, err = otelsql.Open("postgres", path,
			otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: database.client}), NewGORMConfig(tablePrefix))
		if err != nil {
			_ = database.client.Close()
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, SQLitePrefix) {
		// append parameters
		if path, err = AppendURLParams(path, []lo.Tuple2[string, string]{
			{A: "_pragma", B: "busy_timeout(10000)"},
			{A: "_pragma", B: "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		name := path[len(SQLitePrefix):]
		database.driver = SQLite
		if database.client, err = otelsql.Open("sqlite", name,
			otelsql.WithAttributes(semconv.DBSystemSqlite),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		gormConfig := NewGORMConfig(tablePrefix)
		gormConfig.Logger = &zapgorm2.Logger{
			ZapLogger:                 log.Logger(),
			LogLevel:                  logger.Warn,
			SlowThreshold:             10 * time.Second,
			SkipCallerLookup:          false,
			IgnoreRecordNotFoundError: false,
		}
		database.gormDB, err = gorm.Open(sqlite.Dialector{Conn: database.client}, gormConfig)
		if err != nil {
			_ = database.client.Close()
			return nil, errors.Trace(err)
		}
		return database, nil
	}
	return nil, errors.NotSupportedf("database %s", path)
}

func (d *Database) Driver() SQLDriver {
	return d.driver
}

func (d *Database) Close() error {
	return d.client.Close()
}

// Init creates tables if not exist.
func (d *Database) Init() error {
	db := d.gormDB
	if d.driver == MySQL {
		db = db.Set("gorm:table_options", "ENGINE=InnoDB")
	}
	return errors.Trace(db.AutoMigrate(SQLRating{}, SQLItem{}, SQLRecommendation{}))
}

// InsertRatings inserts observations. Existing ratings of the same pair are overwritten.
func (d *Database) InsertRatings(ctx context.Context, observations []dataset.Observation) error {
	for i, o := range observations {
		if err := o.Validate(); err != nil {
			return errors.Annotatef(err, "observation %d", i)
		}
	}
	if len(observations) == 0 {
		return nil
	}
	rows := lo.Map(observations, func(o dataset.Observation, _ int) SQLRating {
		return SQLRating{UserId: o.UserId, ItemId: o.ItemId, Rating: o.Rating}
	})
	// rows of the same pair within one batch would conflict with each other
	rows = lastByKey(rows, func(r SQLRating) [2]string { return [2]string{r.UserId, r.ItemId} })
	return errors.Trace(d.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
	}))
}

// InsertItems inserts items. Existing items are overwritten.
func (d *Database) InsertItems(ctx context.Context, items []catalog.Item) error {
	if len(items) == 0 {
		return nil
	}
	rows := lo.Map(items, func(item catalog.Item, _ int) SQLItem {
		return SQLItem{ItemId: item.ItemId, Name: item.Name, Category: item.Category}
	})
	rows = lastByKey(rows, func(r SQLItem) string { return r.ItemId })
	return errors.Trace(d.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
	}))
}

// lastByKey keeps the last row of each key in order of first appearance.
func lastByKey[T any, K comparable](rows []T, key func(T) K) []T {
	positions := make(map[K]int, len(rows))
	deduped := make([]T, 0, len(rows))
	for _, row := range rows {
		k := key(row)
		if i, exist := positions[k]; exist {
			deduped[i] = row
		} else {
			positions[k] = len(deduped)
			deduped = append(deduped, row)
		}
	}
	return deduped
}

// LoadRatings reads all ratings into a dataset.
func (d *Database) LoadRatings(ctx context.Context) (*dataset.Dataset, error) {
	rows, err := d.gormDB.WithContext(ctx).Table(d.RatingsTable()).
		Select("user_id, item_id, rating").Order("user_id, item_id").Rows()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rows.Close()
	builder := dataset.NewBuilder()
	for rows.Next() {
		var o dataset.Observation
		if err = rows.Scan(&o.UserId, &o.ItemId, &o.Rating); err != nil {
			return nil, errors.Trace(err)
		}
		if err = builder.Add(o); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	return builder.Build(), nil
}

// LoadCatalog reads all items into a catalog.
func (d *Database) LoadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	rows, err := d.gormDB.WithContext(ctx).Table(d.ItemsTable()).
		Select("item_id, name, category").Order("item_id").Rows()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rows.Close()
	c := catalog.New()
	for rows.Next() {
		var item catalog.Item
		if err = rows.Scan(&item.ItemId, &item.Name, &item.Category); err != nil {
			return nil, errors.Trace(err)
		}
		c.Add(item)
	}
	return c, errors.Trace(rows.Err())
}

// SaveRecommendations replaces recommendations of a user.
func (d *Database) SaveRecommendations(ctx context.Context, userId string, recommendations []logics.Recommendation) error {
	rows := lo.Map(recommendations, func(r logics.Recommendation, i int) SQLRecommendation {
		return SQLRecommendation{UserId: userId, Ranking: i + 1, ItemId: r.ItemId, Score: r.Score}
	})
	return errors.Trace(d.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userId).Delete(&SQLRecommendation{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	}))
}

// GetRecommendations returns saved recommendations of a user in rank order.
func (d *Database) GetRecommendations(ctx context.Context, userId string) ([]logics.Recommendation, error) {
	rows, err := d.gormDB.WithContext(ctx).Table(d.RecommendationsTable()).
		Select("item_id, score").Where("user_id = ?", userId).Order("ranking").Rows()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer rows.Close()
	var recommendations []logics.Recommendation
	for rows.Next() {
		var recommendation logics.Recommendation
		if err = rows.Scan(&recommendation.ItemId, &recommendation.Score); err != nil {
			return nil, errors.Trace(err)
		}
		recommendations = append(recommendations, recommendation)
	}
	return recommendations, errors.Trace(rows.Err())
}
