package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xraph/stepwise/extension"
)

func newCheckCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "check [dir]",
		Short: "Validate skill definitions, guidance coverage and custom checks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			dir := cfg.DefinitionsDir
			if len(args) == 1 {
				dir = args[0]
			}

			b, err := extension.LoadSkills(dir)
			if err != nil {
				return err
			}
			if err := b.Guidance.Check(b.Definitions...); err != nil {
				return err
			}
			if missing := b.Validator.MissingChecks(b.Definitions...); len(missing) > 0 {
				return fmt.Errorf("unregistered custom checks:\n  %s", strings.Join(missing, "\n  "))
			}

			out := cmd.OutOrStdout()
			for _, def := range b.Definitions {
				fmt.Fprintf(out, "ok %s v%d: %d steps in %d phases\n",
					def.SkillType, def.Version, def.StepCount(), len(def.Phases))
			}
			return nil
		},
	}
}
