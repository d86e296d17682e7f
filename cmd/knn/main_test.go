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
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorse-io/knn/logics"
	"github.com/gorse-io/knn/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bookRatings = `U1,A,5
U1,B,3
U1,C,4
U2,A,4
U2,B,2
U2,C,3
U2,D,5
U3,A,1
U3,B,5
U3,C,2
U3,D,2
U3,E,4
U4,A,5
U4,C,4
U4,E,1
U5,F,3
`

const bookCatalog = `A,Anna Karenina,Fiction
D,Dune,Fiction|Science Fiction
E,"Emma, A Novel",Romance
`

func writeFile(t *testing.T, name, text string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	var buf bytes.Buffer
	command := newRootCommand()
	command.SetOut(&buf)
	command.SetArgs(args)
	err := command.Execute()
	return buf.String(), err
}

func readFile(t *testing.T, path string) string {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRecommend(t *testing.T) {
	ratings := writeFile(t, "ratings.csv", bookRatings)
	items := writeFile(t, "items.csv", bookCatalog)
	output := filepath.Join(t.TempDir(), "result.csv")
	metrics := filepath.Join(t.TempDir(), "metrics.prom")
	_, err := execute(t, "recommend", "--user", "U1", "--ratings", ratings, "--catalog", items,
		"--output", output, "--metrics-file", metrics)
	require.NoError(t, err)
	assert.Equal(t, "item,name,category,score\n"+
		"D,Dune,Fiction|Science Fiction,2.5\n"+
		"E,\"Emma, A Novel\",Romance,0.5\n", readFile(t, output))
	assert.Contains(t, readFile(t, metrics), "knn_recommender_recommend_total")

	// filter by catalog
	_, err = execute(t, "recommend", "--user", "U1", "--ratings", ratings, "--catalog", items,
		"--output", output, "--filter", `item.Category contains "Fiction"`)
	require.NoError(t, err)
	assert.Equal(t, "item,name,category,score\n"+
		"D,Dune,Fiction|Science Fiction,2.5\n", readFile(t, output))

	// console table
	stdout, err := execute(t, "recommend", "--user", "U1", "--ratings", ratings, "--count", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "2.5000")
	assert.NotContains(t, stdout, "0.5000")
}

func TestRecommendConfig(t *testing.T) {
	ratings := writeFile(t, "ratings.csv", bookRatings)
	output := filepath.Join(t.TempDir(), "result.csv")
	configPath := writeFile(t, "config.toml", fmt.Sprintf(`
[recommend]
count = 1

[data]
ratings = %q

[output]
path = %q
`, ratings, output))
	_, err := execute(t, "recommend", "-c", configPath, "--user", "U1")
	require.NoError(t, err)
	assert.Equal(t, "item,name,category,score\nD,,,2.5\n", readFile(t, output))
}

func TestRecommendErrors(t *testing.T) {
	ratings := writeFile(t, "ratings.csv", bookRatings)
	_, err := execute(t, "recommend", "--user", "U9", "--ratings", ratings)
	assert.ErrorIs(t, err, logics.ErrUnknownUser)
	_, err = execute(t, "recommend", "--ratings", ratings)
	assert.Error(t, err)
	_, err = execute(t, "recommend", "--user", "U1", "--ratings", ratings, "--metric", "jaccard")
	assert.Error(t, err)
	_, err = execute(t, "recommend", "--user", "U1")
	assert.Error(t, err)
	_, err = execute(t, "recommend", "--user", "U1", "--ratings", ratings, "--filter", "item.Name +")
	assert.Error(t, err)
}

func TestImportAndBatch(t *testing.T) {
	ratings := writeFile(t, "ratings.csv", bookRatings)
	items := writeFile(t, "items.csv", bookCatalog)
	database := fmt.Sprintf("sqlite://%s/data.db", t.TempDir())
	_, err := execute(t, "import", "--ratings", ratings, "--catalog", items, "--database", database)
	require.NoError(t, err)

	_, err = execute(t, "batch", "--database", database, "--users", "U1,U5", "--jobs", "2")
	require.NoError(t, err)
	db, err := storage.Open(database, "")
	require.NoError(t, err)
	defer db.Close()
	recommendations, err := db.GetRecommendations(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, []logics.Recommendation{{ItemId: "D", Score: 2.5}, {ItemId: "E", Score: 0.5}}, recommendations)
	recommendations, err = db.GetRecommendations(context.Background(), "U2")
	require.NoError(t, err)
	assert.Empty(t, recommendations)

	// write to csv instead of database
	output := filepath.Join(t.TempDir(), "result.csv")
	_, err = execute(t, "batch", "--database", database, "--users", "U1", "--output", output)
	require.NoError(t, err)
	assert.Equal(t, "user,item,name,category,score\n"+
		"U1,D,Dune,Fiction|Science Fiction,2.5\n"+
		"U1,E,\"Emma, A Novel\",Romance,0.5\n", readFile(t, output))

	_, err = execute(t, "import", "--ratings", ratings)
	assert.Error(t, err)
}

func TestBatchFile(t *testing.T) {
	ratings := writeFile(t, "ratings.csv", bookRatings)
	stdout, err := execute(t, "batch", "--ratings", ratings, "--count", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "U1")
	assert.Contains(t, stdout, "2.5000")
}

func TestVersion(t *testing.T) {
	stdout, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Version:")
	assert.Contains(t, stdout, "OS/Arch:")
}
