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
	"fmt"
	"math"
	"os"
	"testing"

	"github.com/gorse-io/knn/catalog"
	"github.com/gorse-io/knn/dataset"
	"github.com/gorse-io/knn/logics"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type DatabaseTestSuite struct {
	suite.Suite
	dsn      func() string
	driver   SQLDriver
	database *Database
}

func (suite *DatabaseTestSuite) SetupTest() {
	var err error
	suite.database, err = Open(suite.dsn(), "knn_")
	suite.Require().NoError(err)
	suite.Require().NoError(suite.database.Init())
	for _, table := range []string{
		suite.database.RatingsTable(),
		suite.database.ItemsTable(),
		suite.database.RecommendationsTable(),
	} {
		_, err = suite.database.client.Exec("DELETE FROM " + table)
		suite.Require().NoError(err)
	}
}

func (suite *DatabaseTestSuite) TearDownTest() {
	suite.NoError(suite.database.Close())
}

func (suite *DatabaseTestSuite) TestInit() {
	suite.Equal(suite.driver, suite.database.Driver())
	suite.NoError(suite.database.Init())
	for _, table := range []string{"knn_ratings", "knn_items", "knn_recommendations"} {
		suite.True(suite.database.gormDB.Migrator().HasTable(table), table)
	}
	var count int
	err := suite.database.client.QueryRow("SELECT COUNT(*) FROM knn_ratings").Scan(&count)
	suite.NoError(err)
	suite.Zero(count)
}

func (suite *DatabaseTestSuite) TestInsertDuplicates() {
	ctx := context.Background()
	err := suite.database.InsertRatings(ctx, []dataset.Observation{
		{UserId: "U1", ItemId: "A", Rating: 5},
		{UserId: "U1", ItemId: "B", Rating: 3},
		{UserId: "U1", ItemId: "A", Rating: 2},
	})
	suite.NoError(err)
	data, err := suite.database.LoadRatings(ctx)
	suite.NoError(err)
	ratings, ok := data.UserRatings("U1")
	suite.True(ok)
	suite.Equal(map[string]float64{"A": 2, "B": 3}, ratings)

	err = suite.database.InsertItems(ctx, []catalog.Item{
		{ItemId: "A", Name: "Anna Karenina"},
		{ItemId: "A", Name: "Anna Karenina", Category: "Fiction"},
	})
	suite.NoError(err)
	c, err := suite.database.LoadCatalog(ctx)
	suite.NoError(err)
	suite.Equal([]catalog.Item{{ItemId: "A", Name: "Anna Karenina", Category: "Fiction"}}, c.Items())

	// empty inserts are no-ops
	suite.NoError(suite.database.InsertRatings(ctx, nil))
	suite.NoError(suite.database.InsertItems(ctx, nil))
}

func (suite *DatabaseTestSuite) TestRatings() {
	ctx := context.Background()
	err := suite.database.InsertRatings(ctx, []dataset.Observation{
		{UserId: "U1", ItemId: "A", Rating: 5},
		{UserId: "U1", ItemId: "B", Rating: 3},
		{UserId: "U2", ItemId: "A", Rating: 4},
	})
	suite.NoError(err)
	// overwrite
	err = suite.database.InsertRatings(ctx, []dataset.Observation{
		{UserId: "U1", ItemId: "B", Rating: 1},
		{UserId: "U3", ItemId: "C", Rating: 2.5},
	})
	suite.NoError(err)

	data, err := suite.database.LoadRatings(ctx)
	suite.NoError(err)
	suite.Equal(3, data.CountUsers())
	suite.Equal(3, data.CountItems())
	suite.Equal(4, data.CountRatings())
	suite.Equal([]string{"U1", "U2", "U3"}, data.UserIds())
	ratings, ok := data.UserRatings("U1")
	suite.True(ok)
	suite.Equal(map[string]float64{"A": 5, "B": 1}, ratings)
	ratings, ok = data.UserRatings("U3")
	suite.True(ok)
	suite.Equal(map[string]float64{"C": 2.5}, ratings)
}

func (suite *DatabaseTestSuite) TestInsertMalformedRatings() {
	ctx := context.Background()
	err := suite.database.InsertRatings(ctx, []dataset.Observation{
		{UserId: "U1", ItemId: "A", Rating: 5},
		{UserId: "", ItemId: "B", Rating: 3},
	})
	suite.True(errors.Is(err, dataset.ErrMalformedObservation))
	err = suite.database.InsertRatings(ctx, []dataset.Observation{
		{UserId: "U1", ItemId: "A", Rating: math.NaN()},
	})
	suite.True(errors.Is(err, dataset.ErrMalformedObservation))
	// nothing is inserted
	data, err := suite.database.LoadRatings(ctx)
	suite.NoError(err)
	suite.Zero(data.CountRatings())
}

func (suite *DatabaseTestSuite) TestCatalog() {
	ctx := context.Background()
	err := suite.database.InsertItems(ctx, []catalog.Item{
		{ItemId: "1", Name: "Toy Story (1995)", Category: "Animation|Children's|Comedy"},
		{ItemId: "2", Name: "Jumanji (1995)"},
	})
	suite.NoError(err)
	err = suite.database.InsertItems(ctx, []catalog.Item{
		{ItemId: "2", Name: "Jumanji (1995)", Category: "Adventure|Children's|Fantasy"},
	})
	suite.NoError(err)

	c, err := suite.database.LoadCatalog(ctx)
	suite.NoError(err)
	suite.Equal([]catalog.Item{
		{ItemId: "1", Name: "Toy Story (1995)", Category: "Animation|Children's|Comedy"},
		{ItemId: "2", Name: "Jumanji (1995)", Category: "Adventure|Children's|Fantasy"},
	}, c.Items())
}

func (suite *DatabaseTestSuite) TestRecommendations() {
	ctx := context.Background()
	err := suite.database.SaveRecommendations(ctx, "U1", []logics.Recommendation{
		{ItemId: "D", Score: 2.5},
		{ItemId: "E", Score: 0.5},
	})
	suite.NoError(err)
	err = suite.database.SaveRecommendations(ctx, "U2", []logics.Recommendation{
		{ItemId: "A", Score: 1},
	})
	suite.NoError(err)
	recommendations, err := suite.database.GetRecommendations(ctx, "U1")
	suite.NoError(err)
	suite.Equal([]logics.Recommendation{{ItemId: "D", Score: 2.5}, {ItemId: "E", Score: 0.5}}, recommendations)

	// replace
	err = suite.database.SaveRecommendations(ctx, "U1", []logics.Recommendation{
		{ItemId: "F", Score: 3},
	})
	suite.NoError(err)
	recommendations, err = suite.database.GetRecommendations(ctx, "U1")
	suite.NoError(err)
	suite.Equal([]logics.Recommendation{{ItemId: "F", Score: 3}}, recommendations)
	recommendations, err = suite.database.GetRecommendations(ctx, "U2")
	suite.NoError(err)
	suite.Equal([]logics.Recommendation{{ItemId: "A", Score: 1}}, recommendations)

	// clear
	err = suite.database.SaveRecommendations(ctx, "U1", nil)
	suite.NoError(err)
	recommendations, err = suite.database.GetRecommendations(ctx, "U1")
	suite.NoError(err)
	suite.Empty(recommendations)
}

func TestSQLite(t *testing.T) {
	suite.Run(t, &DatabaseTestSuite{driver: SQLite, dsn: func() string {
		return fmt.Sprintf("sqlite://%s/data.db", t.TempDir())
	}})
}

func TestMySQL(t *testing.T) {
	dsn := os.Getenv("MYSQL_URI")
	if dsn == "" {
		t.Skip("MYSQL_URI is not set")
	}
	suite.Run(t, &DatabaseTestSuite{driver: MySQL, dsn: func() string { return dsn }})
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("POSTGRES_URI")
	if dsn == "" {
		t.Skip("POSTGRES_URI is not set")
	}
	suite.Run(t, &DatabaseTestSuite{driver: Postgres, dsn: func() string { return dsn }})
}

func TestOpen(t *testing.T) {
	_, err := Open("redis://127.0.0.1:6379", "")
	assert.True(t, errors.Is(err, errors.NotSupported))
}

func TestLastByKey(t *testing.T) {
	rows := lastByKey([]SQLRating{
		{UserId: "U1", ItemId: "A", Rating: 1},
		{UserId: "U2", ItemId: "A", Rating: 2},
		{UserId: "U1", ItemId: "A", Rating: 3},
	}, func(r SQLRating) [2]string { return [2]string{r.UserId, r.ItemId} })
	assert.Equal(t, []SQLRating{
		{UserId: "U1", ItemId: "A", Rating: 3},
		{UserId: "U2", ItemId: "A", Rating: 2},
	}, rows)
}

func TestNewGORMConfig(t *testing.T) {
	naming := NewGORMConfig("knn_").NamingStrategy
	assert.Equal(t, "knn_ratings", naming.TableName("SQLRating"))
	assert.Equal(t, "knn_items", naming.TableName("SQLItem"))
	assert.Equal(t, "knn_recommendations", naming.TableName("SQLRecommendation"))
	assert.Equal(t, TablePrefix("knn_").RecommendationsTable(), naming.TableName("SQLRecommendation"))
}

func TestAppendURLParams(t *testing.T) {
	dsn, err := AppendURLParams("sqlite:///tmp/data.db", nil)
	assert.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/data.db", dsn)
	dsn, err = AppendMySQLParams("root:password@tcp(127.0.0.1:3306)/knn?sql_mode=ANSI", map[string]string{
		"sql_mode": "TRADITIONAL",
		"charset":  "utf8mb4",
	})
	assert.NoError(t, err)
	assert.Contains(t, dsn, "sql_mode=ANSI")
	assert.Contains(t, dsn, "charset=utf8mb4")
}
