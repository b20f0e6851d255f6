package cmd

import (
	"errors"

	"github.com/SundayYogurt/ims_service/internal/db"
	"github.com/SundayYogurt/ims_service/internal/dto"
	"github.com/SundayYogurt/ims_service/internal/helper"
	"github.com/SundayYogurt/ims_service/internal/repository"
	"github.com/SundayYogurt/ims_service/internal/services"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage operator accounts",
}

var newUser struct {
	email         string
	password      string
	fullName      string
	role          string
	institutionID string
}

// user create bootstraps the first immigration account, after which
// POST /api/users takes over.
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an operator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.AccessSecret == "" {
			return errors.New("ACCESS_SECRET is required")
		}

		gdb, err := db.Open(cfg, log)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close(gdb) }()
		if err := db.Migrate(gdb); err != nil {
			return err
		}

		users := services.NewUserService(
			repository.NewUserRepository(gdb),
			repository.NewRoleRepository(gdb),
			repository.NewUserRoleRepository(gdb),
			repository.NewInstitutionRepository(gdb),
			helper.SetupAuth(cfg.AccessSecret, cfg.AccessTTL),
		)

		req := dto.CreateUserRequest{
			Email:    newUser.email,
			Password: newUser.password,
			FullName: newUser.fullName,
			Role:     newUser.role,
		}
		if newUser.institutionID != "" {
			req.InstitutionID = &newUser.institutionID
		}

		profile, err := users.CreateUser(cmd.Context(), req)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"user_id": profile.ID,
			"email":   profile.Email,
			"role":    profile.Role,
		}).Info("user created")
		return nil
	},
}

func init() {
	f := userCreateCmd.Flags()
	f.StringVar(&newUser.email, "email", "", "login email")
	f.StringVar(&newUser.password, "password", "", "initial password (min 8 chars)")
	f.StringVar(&newUser.fullName, "name", "", "full name")
	f.StringVar(&newUser.role, "role", "IMMIGRATION", "IMMIGRATION or INSTITUTION")
	f.StringVar(&newUser.institutionID, "institution", "", "institution id, required for INSTITUTION")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")
	_ = userCreateCmd.MarkFlagRequired("name")

	userCmd.AddCommand(userCreateCmd)
}
