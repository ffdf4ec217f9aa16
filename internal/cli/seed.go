package cli

import (
	"fmt"

	"dailyquiz-service/internal/infra/memory"
	"dailyquiz-service/internal/infra/postgres"
	"github.com/spf13/cobra"
)

// NewSeedCmd upserts questions and user profiles from a YAML document.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert questions and users from a YAML file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfigAndLogger(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			if file == "" {
				file = cfg.Quiz.SeedFile
			}
			if file == "" {
				return fmt.Errorf("no seed file given")
			}
			seed, err := postgres.LoadSeed(file)
			if err != nil {
				return err
			}
			if err := runMigrations(cmd.Context(), cfg, log); err != nil {
				return err
			}

			db := postgres.OpenBun(cfg.Postgres.URL)
			defer db.Close()
			stats, err := postgres.NewSeeder(db).Apply(cmd.Context(), seed)
			if err != nil {
				return err
			}
			log.Info("seed applied", "file", file, "questions", stats.Questions, "users", stats.Users, "follows", stats.Follows)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "seed YAML file (defaults to quiz.seed_file)")
	return cmd
}

// seedMemory loads a seed document into the in-memory bank and store.
func seedMemory(path string, bank *memory.QuestionBank, store *memory.Store) (postgres.SeedStats, error) {
	seed, err := postgres.LoadSeed(path)
	if err != nil {
		return postgres.SeedStats{}, err
	}
	for _, q := range seed.DomainQuestions() {
		bank.Put(q)
	}
	var stats postgres.SeedStats
	for _, p := range seed.Profiles() {
		store.PutProfile(p)
		stats.Follows += len(p.Following)
	}
	stats.Questions = len(seed.Questions)
	stats.Users = len(seed.Users)
	return stats, nil
}
