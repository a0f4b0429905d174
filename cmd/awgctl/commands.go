package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"amneziawg-webui/internal/form"
	"amneziawg-webui/internal/store"
	"amneziawg-webui/internal/tunnel"
)

var (
	saveSection string
	rowsFile    string
)

func registerCommands(root *cobra.Command) {
	saveCmd.Flags().StringVar(&saveSection, "section", string(tunnel.SectionBasic), "section to save (basic|obfs|policy|advanced)")
	saveCmd.Flags().StringVar(&rowsFile, "rows", "", "YAML file with peers/routes/marks rows")
	root.AddCommand(showCmd, pathsCmd, getCmd, setCmd, genkeyCmd, importKeyCmd, saveCmd, renderCmd, importCmd, revisionsCmd)
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the document a save would send",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := openSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), s.editor.Serialize())
	},
}

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "List the field paths accepted by get and set",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		for _, path := range store.Paths() {
			cmd.Println(path)
		}
	},
}

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Print one field of the stored configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		value, err := s.editor.Store().Get(args[0])
		if err != nil {
			return err
		}
		if text, ok := value.(string); ok {
			cmd.Println(text)
			return nil
		}
		return printJSON(cmd.OutOrStdout(), value)
	},
}

var setCmd = &cobra.Command{
	Use:   "set <path>=<value>...",
	Short: "Change fields and save the sections they belong to",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		touched := make(map[tunnel.Section]bool)
		for _, arg := range args {
			path, value, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("expected <path>=<value>, got %q", arg)
			}
			section, ok := tunnel.SectionOf(path)
			if !ok {
				return fmt.Errorf("%w: %q", store.ErrUnknownPath, path)
			}
			if err := s.editor.Store().Set(path, value); err != nil {
				return err
			}
			touched[section] = true
		}
		for _, section := range tunnel.Sections {
			if !touched[section] {
				continue
			}
			if _, err := s.editor.Save(cmd.Context(), section); err != nil {
				return err
			}
		}
		return nil
	},
}

var genkeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "Generate a new interface private key and save it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := openSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		result, err := s.editor.Keys().Generate()
		if err != nil {
			return err
		}
		if result.Insecure {
			cmd.PrintErrf("WARNING: key generated from %s, which is not cryptographically secure\n", result.Source)
		}
		_, err = s.editor.Save(cmd.Context(), tunnel.SectionBasic)
		return err
	},
}

var importKeyCmd = &cobra.Command{
	Use:   "import-key [key]",
	Short: "Store an existing private key (read from stdin when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var text string
		if len(args) == 1 {
			text = args[0]
		} else {
			raw, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 4096))
			if err != nil {
				return err
			}
			text = string(raw)
		}
		s, err := openSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		s.editor.Keys().Import(text)
		_, err = s.editor.Save(cmd.Context(), tunnel.SectionBasic)
		return err
	},
}

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save one section, optionally replacing table rows from a YAML file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		section, err := tunnel.ParseSection(saveSection)
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		if rowsFile != "" {
			file, err := os.Open(rowsFile)
			if err != nil {
				return err
			}
			defer file.Close()
			rows, err := form.LoadYAML(file)
			if err != nil {
				return err
			}
			s.useRows(rows)
		}
		result, err := s.editor.Save(cmd.Context(), section)
		if err != nil {
			return err
		}
		for _, warning := range result.Warnings {
			cmd.PrintErrln("warning:", warning)
		}
		return nil
	},
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the stored configuration as awg-quick text",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		text, err := newClient().Render(cmd.Context())
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), text)
		return err
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import an awg-quick config file into the stored configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		result, err := newClient().Import(cmd.Context(), string(raw))
		if err != nil {
			return err
		}
		cmd.Printf("imported as revision %s\n", result.Revision)
		for _, warning := range result.Warnings {
			cmd.PrintErrln("warning:", warning)
		}
		return nil
	},
}

var revisionsCmd = &cobra.Command{
	Use:   "revisions",
	Short: "List the backend save history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		revisions, err := newClient().Revisions(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSECTION\tSAVED\tWARNINGS")
		for _, rev := range revisions {
			saved := time.Unix(rev.SavedAt, 0).Local().Format(time.DateTime)
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", rev.ID, rev.Section, saved, len(rev.Warnings))
		}
		return w.Flush()
	},
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
