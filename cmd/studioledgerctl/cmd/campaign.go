package cmd

import (
	"context"

	campaigndomain "github.com/smallbiznis/studioledger/internal/campaign/domain"
	"github.com/spf13/cobra"
)

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Manage marketing campaigns",
}

var campaignSendCmd = &cobra.Command{
	Use:     "send <campaign-id>",
	Short:   "Send a draft campaign to every opted-in client of the studio",
	Args:    cobra.ExactArgs(1),
	Example: `  studioledgerctl campaign send 1744839201500 --studio 1744839201392`,
	RunE:    runCampaignSend,
}

var campaignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the studio's campaigns",
	RunE:  runCampaignList,
}

func init() {
	rootCmd.AddCommand(campaignCmd)
	campaignCmd.AddCommand(campaignSendCmd, campaignListCmd)

	campaignCmd.PersistentFlags().String("studio", "", "Studio that owns the campaign")
	campaignCmd.PersistentFlags().String("user", "", "User recorded in the audit log")
	_ = campaignCmd.MarkPersistentFlagRequired("studio")
}

func runCampaignSend(cmd *cobra.Command, args []string) error {
	var svc campaigndomain.Service
	return runApp(cmd, func(ctx context.Context) error {
		ctx, _, err := studioContext(ctx, cmd)
		if err != nil {
			return err
		}
		campaign, err := svc.SendCampaign(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, campaign)
	}, &svc)
}

func runCampaignList(cmd *cobra.Command, args []string) error {
	var svc campaigndomain.Service
	return runApp(cmd, func(ctx context.Context) error {
		ctx, _, err := studioContext(ctx, cmd)
		if err != nil {
			return err
		}
		campaigns, err := svc.ListCampaigns(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd, campaigns)
	}, &svc)
}
