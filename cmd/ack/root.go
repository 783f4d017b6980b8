package ack

import (
	"github.com/ValentinKolb/dACK/cmd/util"
	"github.com/ValentinKolb/dACK/rpc/client"
	"github.com/spf13/cobra"
)

var (
	ackClient client.IAckClient

	// AckCommands represents the ack command group
	AckCommands = &cobra.Command{
		Use:               "ack",
		Short:             "Perform acknowledgement coordination operations",
		PersistentPreRunE: setupAckClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags to the ack command
	util.SetupRPCClientFlags(AckCommands)

	// Set default domain ID for ack operations
	AckCommands.PersistentFlags().Int("domain", 100, util.WrapString("ID of the coordination domain to connect to"))

	// Add subcommands
	AckCommands.AddCommand(declareCmd)
	AckCommands.AddCommand(releaseCmd)
	AckCommands.AddCommand(claimsCmd)
	AckCommands.AddCommand(eventsCmd)
	AckCommands.AddCommand(perfTestCmd)
}

// setupAckClient initializes the RPC ack client
func setupAckClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()
	domainId := util.GetDomainID()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the ack client
	ackClient, err = client.NewRPCAckClient(
		domainId,
		*config,
		t,
		s,
	)

	return err
}
