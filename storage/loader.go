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
	"os"
	"strings"

	"github.com/gorse-io/knn/catalog"
	"github.com/gorse-io/knn/common/log"
	"github.com/gorse-io/knn/dataset"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

const ErrMalformedItem = errors.ConstError("malformed item")

// maxLineSize bounds a single line of an input file.
const maxLineSize = 16 * 1024 * 1024

// LoadOptions controls how delimited files are parsed.
type LoadOptions struct {
	// Separator between fields. It may be longer than one character, e.g. "::".
	Separator string
	// SkipHeader is the number of leading lines to ignore.
	SkipHeader int
	// SkipMalformed logs and skips rows that cannot be parsed. Otherwise the
	// first malformed row aborts loading.
	SkipMalformed bool
	// Progress shows a progress bar over bytes read.
	Progress bool
}

// ReadLines parse fields of each line for csv file.
func ReadLines(sc *bufio.Scanner, sep string, handler func(int, []string) bool) error {
	separator := []rune(sep)
	lineCount := 0               // line number of current position
	fields := make([]string, 0)  // fields for current line
	builder := strings.Builder{} // string builder for current field
	quoted := false              // whether current position in quote
	for sc.Scan() {
		line := []rune(sc.Text())
		// start of line
		if quoted {
			builder.WriteString("\r\n")
		}
		// parse line
		for i := 0; i < len(line); i++ {
			if !quoted && hasSeparator(line, i, separator) {
				// end of field
				fields = append(fields, builder.String())
				builder.Reset()
				i += len(separator) - 1
			} else if line[i] == '"' {
				if quoted {
					if i+1 >= len(line) || line[i+1] != '"' {
						// end of quoted
						quoted = false
					} else {
						i++
						builder.WriteRune('"')
					}
				} else {
					// start of quoted
					quoted = true
				}
			} else {
				builder.WriteRune(line[i])
			}
		}
		// end of line
		if !quoted {
			fields = append(fields, builder.String())
			builder.Reset()
			if !handler(lineCount, fields) {
				return nil
			}
			fields = []string{}
		}
		lineCount++
	}
	return sc.Err()
}

func hasSeparator(line []rune, i int, separator []rune) bool {
	if len(separator) == 0 || i+len(separator) > len(line) {
		return false
	}
	for j, c := range separator {
		if line[i+j] != c {
			return false
		}
	}
	return true
}

// readRows feeds non-empty rows after the header to parse. A parse error
// either skips the row or stops reading, depending on SkipMalformed.
func readRows(r io.Reader, opts LoadOptions, parse func([]string) error) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	skipped := 0
	var rowErr error
	err := ReadLines(sc, opts.Separator, func(i int, fields []string) bool {
		if i < opts.SkipHeader || (len(fields) == 1 && strings.TrimSpace(fields[0]) == "") {
			return true
		}
		if err := parse(fields); err != nil {
			if opts.SkipMalformed {
				skipped++
				log.Logger().Warn("skip malformed row", zap.Int("line", i+1), zap.Error(err))
				return true
			}
			rowErr = errors.Annotatef(err, "line %d", i+1)
			return false
		}
		return true
	})
	if err != nil {
		return skipped, errors.Trace(err)
	}
	return skipped, rowErr
}

// ReadRatings parses rows of (user, item, rating[, timestamp]).
func ReadRatings(r io.Reader, opts LoadOptions) (*dataset.Dataset, error) {
	builder := dataset.NewBuilder()
	skipped, err := readRows(r, opts, func(fields []string) error {
		o, err := dataset.ParseObservation(fields)
		if err != nil {
			return err
		}
		return builder.Add(o)
	})
	if err != nil {
		return nil, err
	}
	data := builder.Build()
	log.Logger().Info("read ratings",
		zap.Int("n_users", data.CountUsers()),
		zap.Int("n_items", data.CountItems()),
		zap.Int("n_ratings", data.CountRatings()),
		zap.Int("n_skipped", skipped))
	return data, nil
}

// ParseItem decomposes a row of (item, name[, category]).
func ParseItem(fields []string) (catalog.Item, error) {
	if len(fields) < 2 {
		return catalog.Item{}, errors.Annotatef(ErrMalformedItem, "expect at least 2 fields, got %d", len(fields))
	}
	item := catalog.Item{
		ItemId: strings.TrimSpace(fields[0]),
		Name:   strings.TrimSpace(fields[1]),
	}
	if len(fields) > 2 {
		item.Category = strings.TrimSpace(fields[2])
	}
	if item.ItemId == "" {
		return catalog.Item{}, errors.Annotate(ErrMalformedItem, "empty item id")
	}
	return item, nil
}

// ReadCatalog parses rows of (item, name[, category]).
func ReadCatalog(r io.Reader, opts LoadOptions) (*catalog.Catalog, error) {
	c := catalog.New()
	skipped, err := readRows(r, opts, func(fields []string) error {
		item, err := ParseItem(fields)
		if err != nil {
			return err
		}
		c.Add(item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Logger().Info("read catalog", zap.Int("n_items", c.Len()), zap.Int("n_skipped", skipped))
	return c, nil
}

// LoadRatings reads ratings from a delimited file.
func LoadRatings(path string, opts LoadOptions) (*dataset.Dataset, error) {
	r, closer, err := openFile(path, "Loading ratings", opts.Progress)
	if err != nil {
		return nil, err
	}
	defer closer()
	return ReadRatings(r, opts)
}

// LoadCatalog reads items from a delimited file.
func LoadCatalog(path string, opts LoadOptions) (*catalog.Catalog, error) {
	r, closer, err := openFile(path, "Loading catalog", opts.Progress)
	if err != nil {
		return nil, err
	}
	defer closer()
	return ReadCatalog(r, opts)
}

func openFile(path, description string, progress bool) (io.Reader, func(), error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	closer := func() {
		if err := file.Close(); err != nil {
			log.Logger().Warn("failed to close file", zap.String("path", path), zap.Error(err))
		}
	}
	if !progress {
		return file, closer, nil
	}
	stat, err := file.Stat()
	if err != nil {
		closer()
		return nil, nil, errors.Trace(err)
	}
	bar := progressbar.DefaultBytes(stat.Size(), description)
	pbReader := progressbar.NewReader(file, bar)
	return &pbReader, func() {
		_ = bar.Finish()
		closer()
	}, nil
}
