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
	"time"

	"github.com/gorse-io/knn/common/log"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import ratings and catalog files into the database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			conf, err := loadConfig(cmd)
			if err != nil {
				return errors.Trace(err)
			}
			if conf.Data.Ratings == "" || conf.Data.Database == "" {
				return errors.NotValidf("import without --ratings or --database")
			}
			progress, _ := cmd.Flags().GetBool("progress")
			s, err := openSource(cmd.Context(), conf, progress)
			if err != nil {
				return errors.Trace(err)
			}
			defer s.Close()

			observations := s.data.Observations()
			if err = s.database.InsertRatings(cmd.Context(), observations); err != nil {
				return errors.Annotate(err, "failed to import ratings")
			}
			if conf.Data.Catalog != "" {
				if err = s.database.InsertItems(cmd.Context(), s.catalog.Items()); err != nil {
					return errors.Annotate(err, "failed to import catalog")
				}
			}
			log.Logger().Info("complete import",
				zap.Int("n_ratings", len(observations)),
				zap.Int("n_items", s.catalog.Len()),
				zap.Duration("time_consuming", time.Since(start)))
			return nil
		},
	}
}
