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
	"github.com/gorse-io/knn/config"
	"github.com/gorse-io/knn/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newBatchCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "batch",
		Short: "Recommend items for all users and save results.",
		Long: "Recommend items for all users (or those given by --users). Results are saved to the " +
			"database unless --output is set, and printed if neither is available.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			conf, err := loadConfig(cmd)
			if err != nil {
				return errors.Trace(err)
			}
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
			users := conf.Data.Users
			if len(users) == 0 {
				users = s.data.UserIds()
			} else if unknown := lo.Reject(users, func(userId string, _ int) bool {
				return s.data.HasUser(userId)
			}); len(unknown) > 0 {
				log.Logger().Warn("users without ratings", zap.Strings("user_ids", unknown))
			}
			results, err := recommender.RecommendAll(cmd.Context(), users, conf.Recommend.Jobs)
			if err != nil {
				return errors.Trace(err)
			}

			var rows []storage.Row
			saved, failed := 0, 0
			for _, result := range results {
				if result.Err != nil {
					failed++
					log.Logger().Warn("failed to recommend",
						zap.String("user_id", result.UserId), zap.Error(result.Err))
					continue
				}
				if conf.Output.Path == "" && s.database != nil {
					if err = s.database.SaveRecommendations(cmd.Context(), result.UserId, result.Recommendations); err != nil {
						return errors.Annotatef(err, "failed to save recommendations for user %s", result.UserId)
					}
					saved++
				} else {
					rows = append(rows, s.rows(result.UserId, result.Recommendations)...)
				}
			}
			if conf.Output.Path != "" {
				err = writeCSVFile(conf.Output.Path, rows, true)
			} else if s.database == nil {
				err = writeTable(cmd.OutOrStdout(), rows, true)
			}
			if err != nil {
				return errors.Trace(err)
			}
			log.Logger().Info("complete batch recommendation",
				zap.Int("n_users", len(users)),
				zap.Int("n_saved", saved),
				zap.Int("n_failed", failed),
				zap.Duration("time_consuming", time.Since(start)))
			return writeMetrics(conf.Output.MetricsFile)
		},
	}
	defaultConfig := config.GetDefaultConfig()
	command.Flags().Int("jobs", defaultConfig.Recommend.Jobs, "number of working jobs")
	command.Flags().StringSlice("users", defaultConfig.Data.Users, "users to recommend for (default all users)")
	return command
}
