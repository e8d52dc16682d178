// Command migrate runs schema and seed operations for the backend.
package main

import (
	"errors"
	"fmt"
	"os"

	"akinmueble/internal/config"
	"akinmueble/internal/database"
	"akinmueble/internal/seed"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Schema and seed tool for the Akinmueble database",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(upCmd(), statusCmd(), dropCmd(), seedReferenceCmd(), seedDemoCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// open connects without the development auto-migration Connect performs.
func open() (*gorm.DB, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	dialector, err := database.Dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: database.NewGormLogger(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Create or alter tables to match the models",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			cmd.Println("schema up to date")
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which tables exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			missing := 0
			cmd.Printf("%-28s  %s\n", "Table", "Status")
			for _, table := range database.TableNames() {
				status := "present"
				if !db.Migrator().HasTable(table) {
					status = "missing"
					missing++
				}
				cmd.Printf("%-28s  %s\n", table, status)
			}
			if missing > 0 {
				cmd.Printf("%d table(s) missing, run `migrate up`\n", missing)
			}
			return nil
		},
	}
}

func dropCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop every table (destroys all data)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				return errors.New("refusing to drop tables without --force")
			}
			db, err := open()
			if err != nil {
				return err
			}
			for _, table := range database.TableNames() {
				if err := db.Migrator().DropTable(table); err != nil {
					return fmt.Errorf("drop %s: %w", table, err)
				}
				cmd.Printf("dropped %s\n", table)
			}
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Confirm dropping all tables")
	return cmd
}

func seedReferenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-reference",
		Short: "Insert request types, statuses, property types and locations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			if err := seed.Reference(db); err != nil {
				return err
			}
			cmd.Println("reference data seeded")
			return nil
		},
	}
}

func seedDemoCmd() *cobra.Command {
	var opts seed.DemoOptions
	cmd := &cobra.Command{
		Use:   "seed-demo",
		Short: "Insert fake advisers, clients, properties and requests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			if err := seed.Reference(db); err != nil {
				return err
			}
			res, err := seed.Demo(db, opts)
			if err != nil {
				return err
			}
			cmd.Printf("seeded %d advisers, %d clients, %d properties, %d requests\n",
				res.Advisers, res.Clients, res.Properties, res.Requests)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Advisers, "advisers", 5, "Number of advisers")
	cmd.Flags().IntVar(&opts.Clients, "clients", 20, "Number of clients")
	cmd.Flags().IntVar(&opts.PropertiesPerAdviser, "properties", 4, "Properties per adviser")
	cmd.Flags().IntVar(&opts.RequestsPerProperty, "requests", 3, "Requests per property")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "Random seed (0 uses the clock)")
	return cmd
}
