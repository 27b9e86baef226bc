package cli

import (
	"fmt"
	"time"

	"classroom-quiz-service/internal/auth"
	"classroom-quiz-service/internal/config"
	"github.com/spf13/cobra"
)

// NewTokenCmd mints a teacher token signed with auth.teacherSecret.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		room    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a teacher JWT",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if ttl == 0 {
				ttl = config.TTLDuration(cfg.Auth.TokenTTL, 12*time.Hour)
			}
			token, err := auth.NewIssuer(cfg.Auth.TeacherSecret).Issue(subject, room, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "teacher", "token subject")
	cmd.Flags().StringVar(&room, "room", "", "restrict the token to one room code")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.tokenTTL)")
	return cmd
}
