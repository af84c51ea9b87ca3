package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/realtechee/platform/errors"
	"github.com/realtechee/platform/notify"
)

// NotifyCmd represents the notify command - template catalog inspection
var NotifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Inspect the notification template catalog",
	Long: `notify — Notification template catalog.

Notification content lives in an embedded template catalog, keyed by
event (lead.admin-alert, quote.sent, ...). These commands inspect the
catalog and preview rendered output without sending anything.

Examples:
  realtechee notify ls                                  # List catalog events
  realtechee notify test quote.sent --data Name=Amy \
      --data QuoteNumber=Q-100 --data Total=1250.00     # Preview rendering`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var notifyLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List catalog events",
	Long:  "List every event in the template catalog with its channels and default recipients",
	RunE:  runNotifyLs,
}

var notifyTestCmd = &cobra.Command{
	Use:   "test <event>",
	Short: "Preview a rendered notification",
	Long: `Render an event's templates with the supplied data and print the
result. Nothing is queued or sent.

Template data is passed as repeated --data key=value flags. Rendering
fails on missing keys, so the preview doubles as a template check.

Example:
  realtechee notify test lead.ack --data Name=Amy --data RequestID=r-123`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, _ := cmd.Flags().GetStringArray("data")
		return runNotifyTest(args[0], pairs)
	},
}

func init() {
	notifyTestCmd.Flags().StringArray("data", nil, "Template data as key=value (repeatable)")

	NotifyCmd.AddCommand(notifyLsCmd)
	NotifyCmd.AddCommand(notifyTestCmd)
}

func runNotifyLs(cmd *cobra.Command, args []string) error {
	catalog, err := notify.LoadCatalog()
	if err != nil {
		return errors.Wrap(err, "failed to load catalog")
	}

	fmt.Printf("%-20s %-10s %s\n", "EVENT", "CHANNELS", "DEFAULT RECIPIENTS")
	fmt.Printf("%-20s %-10s %s\n", "-----", "--------", "------------------")

	for _, key := range catalog.EventKeys() {
		event, err := catalog.Event(key)
		if err != nil {
			return err
		}

		var channels, defaults []string
		if event.Email != nil {
			channels = append(channels, "email")
			defaults = append(defaults, event.Email.To...)
		}
		if event.SMS != nil {
			channels = append(channels, "sms")
			defaults = append(defaults, event.SMS.To...)
		}

		recipients := strings.Join(defaults, ", ")
		if recipients == "" {
			recipients = "(caller supplies)"
		}
		fmt.Printf("%-20s %-10s %s\n", key, strings.Join(channels, ","), recipients)
	}

	return nil
}

func runNotifyTest(eventKey string, pairs []string) error {
	catalog, err := notify.LoadCatalog()
	if err != nil {
		return errors.Wrap(err, "failed to load catalog")
	}

	event, err := catalog.Event(eventKey)
	if err != nil {
		return err
	}

	data := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return errors.NewValidation("invalid --data %q, expected key=value", pair)
		}
		data[key] = value
	}

	if event.Email != nil {
		email, err := catalog.RenderEmail(eventKey, data)
		if err != nil {
			return errors.Wrap(err, "email render failed")
		}
		fmt.Printf("── email ──────────────────────────────────\n")
		fmt.Printf("Subject: %s\n\n%s\n", email.Subject, email.Body)
	}

	if event.SMS != nil {
		sms, err := catalog.RenderSMS(eventKey, data)
		if err != nil {
			return errors.Wrap(err, "sms render failed")
		}
		fmt.Printf("── sms (%d runes) ──────────────────────────\n", len([]rune(sms.Body)))
		fmt.Printf("%s\n", sms.Body)
	}

	return nil
}
