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

func newRecommendCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend items for a user.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			conf, err := loadConfig(cmd)
			if err != nil {
				return errors.Trace(err)
			}
			userId, _ := cmd.Flags().GetString("user")
			progress, _ := cmd.Flags().GetBool("progress")
			s, err := openSource(cmd.Context(), conf, progress)
			if err != nil {
				return errors.Trace(err)
			}
			defer s.Close()

			recommender, err := s.newRecommender(conf.Recommend)
			if err != nil {
				return errors.Trace(err)
			}
			neighbors, err := recommender.Neighbors(userId)
			if err != nil {
				return errors.Annotatef(err, "failed to find neighbors of user %s", userId)
			}
			log.Logger().Info("find neighbors",
				zap.String("user_id", userId),
				zap.Int("n_user_ratings", s.data.CountUserRatings(userId)),
				zap.Any("neighbors", neighbors))
			recommendations, err := recommender.Recommend(userId)
			if err != nil {
				return errors.Annotatef(err, "failed to recommend for user %s", userId)
			}

			rows := s.rows(userId, recommendations)
			if conf.Output.Path != "" {
				err = writeCSVFile(conf.Output.Path, rows, false)
			} else {
				err = writeTable(cmd.OutOrStdout(), rows, false)
			}
			if err != nil {
				return errors.Trace(err)
			}
			log.Logger().Info("complete recommendation",
				zap.String("user_id", userId),
				zap.Int("n_recommendations", len(rows)),
				zap.Duration("time_consuming", time.Since(start)))
			return writeMetrics(conf.Output.MetricsFile)
		},
	}
	command.Flags().StringP("user", "u", "", "user to recommend for")
	_ = command.MarkFlagRequired("user")
	return command
}
