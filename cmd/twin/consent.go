package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"twin_corpus/internal/consent"
)

var consentName string

var consentCmd = &cobra.Command{
	Use:   "consent",
	Short: "Record or verify consent to use communication data",
}

var consentRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record consent for the person whose messages are used",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, a := range consent.Acknowledgements {
			fmt.Fprintf(out, "  - %s\n", a)
		}
		rec, err := consent.Save(cfg.Consent.File, consentName, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "consent recorded for %s at %s\n", rec.User, cfg.Consent.File)
		return nil
	},
}

var consentCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that consent has been recorded",
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := consent.Check(cfg.Consent.File)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "consent granted by %s on %s\n", rec.User, rec.RecordedAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	consentRecordCmd.Flags().StringVar(&consentName, "name", "", "name of the person whose data is used")
	_ = consentRecordCmd.MarkFlagRequired("name")
	consentCmd.AddCommand(consentRecordCmd, consentCheckCmd)
	rootCmd.AddCommand(consentCmd)
}
