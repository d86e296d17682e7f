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
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// Row is a line of the results table.
type Row struct {
	UserId   string
	ItemId   string
	Name     string
	Category string
	Score    float64
}

// Escape text for csv.
func Escape(text string) string {
	// check if need escape
	if !strings.Contains(text, ",") &&
		!strings.Contains(text, "\"") &&
		!strings.Contains(text, "\n") &&
		!strings.Contains(text, "\r") {
		return text
	}
	// start to encode
	builder := strings.Builder{}
	builder.WriteRune('"')
	for _, c := range text {
		if c == '"' {
			builder.WriteString("\"\"")
		} else {
			builder.WriteRune(c)
		}
	}
	builder.WriteRune('"')
	return builder.String()
}

// WriteCSV writes rows with a header. The user column is written only if withUser is set.
func WriteCSV(w io.Writer, rows []Row, withUser bool) error {
	writer := bufio.NewWriter(w)
	header := []string{"item", "name", "category", "score"}
	if withUser {
		header = append([]string{"user"}, header...)
	}
	if _, err := writer.WriteString(strings.Join(header, ",") + "\n"); err != nil {
		return errors.Trace(err)
	}
	for _, row := range rows {
		fields := []string{
			Escape(row.ItemId),
			Escape(row.Name),
			Escape(row.Category),
			strconv.FormatFloat(row.Score, 'f', -1, 64),
		}
		if withUser {
			fields = append([]string{Escape(row.UserId)}, fields...)
		}
		if _, err := writer.WriteString(strings.Join(fields, ",") + "\n"); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(writer.Flush())
}
