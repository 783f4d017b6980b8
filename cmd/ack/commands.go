package ack

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	declareCmd = &cobra.Command{
		Use:   "declare [subscriber] [label...]",
		Short: "Declares acknowledgement labels for a subscriber",
		Long:  "Declares acknowledgement labels for a subscriber. Labels are exclusive cluster-wide; use --group to declare a shared group claim where all members must declare the identical label set.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			subscriber := args[0]
			labels := args[1:]
			group, _ := cmd.Flags().GetString("group")
			if err := ackClient.Declare(subscriber, group, labels); err != nil {
				return err
			}
			fmt.Println("declared successfully")
			return nil
		},
	}
	releaseCmd = &cobra.Command{
		Use:   "release [subscriber]",
		Short: "Releases all claims of a subscriber",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subscriber := args[0]
			if err := ackClient.Release(subscriber); err != nil {
				return err
			}
			fmt.Println("released successfully")
			return nil
		},
	}
	claimsCmd = &cobra.Command{
		Use:   "claims",
		Short: "Lists the node's local claims",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			claims, err := ackClient.Claims()
			if err != nil {
				return err
			}
			if len(claims) == 0 {
				fmt.Println("no claims")
				return nil
			}
			for _, claim := range claims {
				if claim.Group != "" {
					fmt.Printf("group=%s, labels=%v\n", claim.Group, claim.Labels)
				} else {
					fmt.Printf("labels=%v\n", claim.Labels)
				}
			}
			return nil
		},
	}
	eventsCmd = &cobra.Command{
		Use:   "events [subscriber]",
		Short: "Drains buffered eviction events",
		Long:  "Drains buffered eviction events for a subscriber, or for all subscribers of the domain if no subscriber is given. A subscriber that receives an event has lost its claims and must re-declare.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subscriber := ""
			if len(args) == 1 {
				subscriber = args[0]
			}
			events, err := ackClient.Events(subscriber)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("no events")
				return nil
			}
			for _, event := range events {
				fmt.Printf("subscriber=%s, err=%s\n", event.Subscriber, event.Err)
			}
			return nil
		},
	}
)

func init() {
	declareCmd.Flags().String("group", "", "Group to declare the labels under (empty means ungrouped)")
}
