package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newstack-cloud/syncable/syncable"
)

var echoFlag bool

var applyCmd = &cobra.Command{
	Use:   "apply <changeset-log.json>",
	Short: "Apply a changeset log to an example record and print the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		if echoFlag {
			out, err := echoInOriginalOrder(path)
			if err != nil {
				return err
			}
			fmt.Println(string(out))
		}

		entries, err := loadLog(path)
		if err != nil {
			return err
		}

		fieldNames := make([]string, 0, len(entries))
		seen := map[string]struct{}{}
		for _, e := range entries {
			if _, already := seen[e.Field]; already {
				continue
			}
			seen[e.Field] = struct{}{}
			fieldNames = append(fieldNames, e.Field)
		}

		record := syncable.NewRecord(fieldNames)
		for _, e := range entries {
			if err := record.Set(e.Field, e.Value); err != nil {
				return fmt.Errorf("syncinspect: applying %q: %w", e.Field, err)
			}
		}

		cs, err := record.Changeset()
		if err != nil {
			return err
		}

		redo, err := record.Undo(cs)
		if err != nil {
			return err
		}

		state := map[string]interface{}{}
		for _, f := range fieldNames {
			v, _ := record.Get(f)
			state[f] = v
		}

		result := map[string]interface{}{
			"state_after_undo": state,
			"redo":             redo,
		}

		encoded, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	},
}

func init() {
	applyCmd.Flags().BoolVar(&echoFlag, "echo", false, "print the changeset log back in its original key order before applying it")
}
