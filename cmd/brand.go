package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/internal/model"
)

var (
	brandTenant      string
	brandName        string
	brandDomain      string
	brandID          string
	brandContextFile string
)

var brandCmd = &cobra.Command{
	Use:   "brand",
	Short: "Manage brands",
}

var brandCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a brand",
	RunE: func(cmd *cobra.Command, args []string) error {
		if brandTenant == "" || brandName == "" || brandDomain == "" {
			return eris.New("--tenant, --name and --domain are required")
		}

		var bc model.BrandContext
		if brandContextFile != "" {
			data, err := os.ReadFile(brandContextFile)
			if err != nil {
				return eris.Wrap(err, "read brand context file")
			}
			if err := json.Unmarshal(data, &bc); err != nil {
				return eris.Wrap(err, "parse brand context file")
			}
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		b, err := st.CreateBrand(cmd.Context(), model.Brand{
			ID:       uuid.New().String(),
			TenantID: brandTenant,
			Name:     brandName,
			Domain:   brandDomain,
			Context:  bc,
		})
		if err != nil {
			return err
		}

		zap.L().Info("brand created", zap.String("id", b.ID), zap.String("name", b.Name))
		fmt.Println(b.ID)
		return nil
	},
}

var brandContextCmd = &cobra.Command{
	Use:   "context",
	Short: "Update a brand's context from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if brandID == "" || brandContextFile == "" {
			return eris.New("--id and --context are required")
		}

		data, err := os.ReadFile(brandContextFile)
		if err != nil {
			return eris.Wrap(err, "read brand context file")
		}
		var bc model.BrandContext
		if err := json.Unmarshal(data, &bc); err != nil {
			return eris.Wrap(err, "parse brand context file")
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.UpdateBrandContext(cmd.Context(), brandID, bc); err != nil {
			return err
		}
		zap.L().Info("brand context updated", zap.String("id", brandID))
		return nil
	},
}

func init() {
	brandCreateCmd.Flags().StringVar(&brandTenant, "tenant", "", "tenant ID")
	brandCreateCmd.Flags().StringVar(&brandName, "name", "", "brand name")
	brandCreateCmd.Flags().StringVar(&brandDomain, "domain", "", "brand domain")
	brandCreateCmd.Flags().StringVar(&brandContextFile, "context", "", "JSON file with brand context")

	brandContextCmd.Flags().StringVar(&brandID, "id", "", "brand ID")
	brandContextCmd.Flags().StringVar(&brandContextFile, "context", "", "JSON file with brand context")

	brandCmd.AddCommand(brandCreateCmd, brandContextCmd)
	rootCmd.AddCommand(brandCmd)
}
