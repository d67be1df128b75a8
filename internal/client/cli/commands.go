package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/citygate/internal/client/client"
	"github.com/dmitrijs2005/citygate/internal/common"
	"github.com/spf13/cobra"
)

func (a *App) registerCmd() *cobra.Command {
	var (
		username string
		email    string
		roles    []string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reader := bufio.NewReader(cmd.InOrStdin())
			if err := prompt(cmd, reader, &username, "Username"); err != nil {
				return err
			}
			password, err := GetPassword("Password", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			c, err := a.newClient(false)
			if err != nil {
				return err
			}
			p, err := c.Register(cmd.Context(), client.RegisterRequest{
				Username: username,
				Password: string(password),
				Email:    email,
				Roles:    roles,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.Message)
			printProfile(cmd.OutOrStdout(), p)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted when empty)")
	cmd.Flags().StringVar(&email, "email", "", "optional email address")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role to request (repeatable; default USER)")
	return cmd
}

func (a *App) loginCmd() *cobra.Command {
	var (
		username string
		save     bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print the bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reader := bufio.NewReader(cmd.InOrStdin())
			if err := prompt(cmd, reader, &username, "Username"); err != nil {
				return err
			}
			password, err := GetPassword("Password", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			c, err := a.newClient(false)
			if err != nil {
				return err
			}
			res, err := c.Login(cmd.Context(), username, string(password))
			if err != nil {
				return err
			}

			if save {
				if err := saveToken(a.cfg.TokenFile, res.Token); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "token saved to %s\n", a.cfg.TokenFile)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted when empty)")
	cmd.Flags().BoolVar(&save, "save", false, "store the token in the token file")
	return cmd
}

func (a *App) profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the logged-in identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.newClient(true)
			if err != nil {
				return err
			}
			p, err := c.Profile(cmd.Context())
			if err != nil {
				return explain(err)
			}
			printProfile(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

func (a *App) updateProfileCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "update-profile",
		Short: "Change the email address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.newClient(true)
			if err != nil {
				return err
			}
			p, err := c.UpdateProfile(cmd.Context(), email)
			if err != nil {
				return explain(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.Message)
			printProfile(cmd.OutOrStdout(), p)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "new email address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *App) changePasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "change-password",
		Short: "Change the password of the logged-in identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			oldPassword, err := GetPassword("Current password", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer common.WipeByteArray(oldPassword)
			newPassword, err := GetPassword("New password", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer common.WipeByteArray(newPassword)

			c, err := a.newClient(true)
			if err != nil {
				return err
			}
			msg, err := c.ChangePassword(cmd.Context(), string(oldPassword), string(newPassword))
			if err != nil {
				return explain(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func printProfile(w io.Writer, p *client.Profile) {
	if p.ID != "" {
		fmt.Fprintf(w, "id:       %s\n", p.ID)
	}
	fmt.Fprintf(w, "username: %s\n", p.Username)
	fmt.Fprintf(w, "email:    %s\n", p.Email)
	fmt.Fprintf(w, "roles:    %s\n", strings.Join(p.Roles, ","))
}

// explain adds a hint for the gateway's bodyless rejections.
func explain(err error) error {
	switch {
	case errors.Is(err, client.ErrForbidden):
		return fmt.Errorf("token rejected (expired or invalid), log in again: %w", err)
	case errors.Is(err, client.ErrUnauthorized):
		return fmt.Errorf("no token sent: %w", err)
	}
	return err
}
