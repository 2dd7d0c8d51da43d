package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/controller"
	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/dns"
	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/source"
)

func newCmdRecords() *cobra.Command {
	return &cobra.Command{
		Use:   "records",
		Short: "List the live records of every configured subdomain, by line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			for _, domain := range a.cfg.Domains.Domains() {
				for _, sub := range a.cfg.Domains.Subdomains(domain) {
					snap, err := a.reconciler.Snapshot(cmd.Context(), domain, sub)
					if err != nil {
						return err
					}
					printSnapshot(cmd.OutOrStdout(), dns.FQDN(sub, domain), a.cfg.Domains.Lines(domain, sub), snap)
				}
			}
			return nil
		},
	}
}

func newCmdCandidates() *cobra.Command {
	return &cobra.Command{
		Use:   "candidates",
		Short: "Fetch and print the candidate IPs selected for each line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			pools := a.source.Fetch(cmd.Context(), a.cfg.RecordType)
			if pools.Empty() {
				return fmt.Errorf("no candidates available from %s", a.cfg.Source.URL)
			}
			printPools(cmd.OutOrStdout(), pools)
			return nil
		},
	}
}

func newCmdClean() *cobra.Command {
	var (
		domain    string
		subdomain string
		line      string
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete every record of one subdomain on one line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := dns.ParseLine(line)
			if err != nil {
				return err
			}
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			a.reconciler.DryRun = dryRun

			rep := a.reconciler.Purge(cmd.Context(), domain, subdomain, l)
			printOutcomes(cmd.OutOrStdout(), rep.Outcomes)
			return rep.Err
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "", "Zone name, e.g. example.com")
	cmd.Flags().StringVar(&subdomain, "subdomain", dns.ApexName, "Host label within the zone")
	cmd.Flags().StringVar(&line, "line", "", "Line name or ISP code, e.g. telecom or CT")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the records that would be deleted")
	cmd.MarkFlagRequired("domain")
	cmd.MarkFlagRequired("line")
	return cmd
}

func newCmdVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "yk-cdn-dns version %s\n", Version)
		},
	}
}

func printSnapshot(w io.Writer, fqdn string, lines []dns.Line, snap controller.Snapshot) {
	fmt.Fprintf(w, "Records in %s\n", fqdn)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Line", "ID", "Value", "Type", "TTL"})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})
	table.SetAutoWrapText(false)
	for _, l := range lines {
		records := snap[l]
		if len(records) == 0 {
			table.Append([]string{string(l), "", "-", "", ""})
			continue
		}
		for _, r := range records {
			table.Append([]string{string(l), r.ID, r.Value, r.Type, strconv.Itoa(r.TTL)})
		}
	}
	table.Render()
}

func printPools(w io.Writer, pools source.Pools) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Line", "ISP", "Rank", "IP"})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT})
	table.SetAutoWrapText(false)
	for _, l := range dns.Lines {
		for i, ip := range pools[l] {
			table.Append([]string{string(l), l.ISPCode(), strconv.Itoa(i + 1), ip})
		}
	}
	table.Render()
}

func printOutcomes(w io.Writer, outcomes []controller.Outcome) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Operate", "Line", "ID", "Value", "Result"})
	table.SetAutoWrapText(false)
	for _, o := range outcomes {
		result := "ok"
		switch {
		case o.DryRun:
			result = "planned"
		case o.Err != nil:
			result = o.Err.Error()
		}
		table.Append([]string{string(o.Kind), string(o.Target.Line), o.RecordID, o.Value, result})
	}
	table.Render()
}
