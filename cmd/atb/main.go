package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-atb/internal/config"
	"github.com/KirkDiggler/rpg-atb/internal/dice"
	"github.com/KirkDiggler/rpg-atb/internal/domain/catalog"
	"github.com/KirkDiggler/rpg-atb/internal/services"
)

// app carries what every subcommand needs
type app struct {
	cfg         *config.Config
	catalogPath string
	seed        int64
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file")
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "atb",
		Short:        "Drive tick-based combat encounters",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			if a.catalogPath == "" {
				a.catalogPath = cfg.Catalog.Path
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.catalogPath, "catalog", "", "Action and ailment catalog (defaults to ATB_CATALOG_PATH)")
	root.PersistentFlags().Int64Var(&a.seed, "seed", 0, "Dice seed, 0 picks one from the clock")

	root.AddCommand(newRunCmd(a), newInspectCmd(a), newListCmd(a))
	return root
}

// provider loads the catalog and opens the configured store
func (a *app) provider(ctx context.Context) (*services.Provider, error) {
	cat, err := catalog.Load(a.catalogPath)
	if err != nil {
		return nil, err
	}

	var roller dice.Roller
	if a.seed != 0 {
		roller = dice.NewRandomRoller(a.seed)
	}

	return services.NewProvider(ctx, &services.ProviderConfig{
		Config:  a.cfg,
		Catalog: cat,
		Roller:  roller,
	})
}

// closeProvider logs instead of failing the command
func closeProvider(p *services.Provider) {
	if err := p.Close(); err != nil {
		log.Printf("Error closing store: %v", err)
	}
}
