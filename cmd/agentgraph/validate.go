package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/arcnem/agentgraph"
	"github.com/arcnem/agentgraph/pkg/graph"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workflow.yaml>",
	Short: "Validate a workflow draft file",
	Long: `Validate normalizes a workflow draft and reports the first violated
rule, if any. With --catalog the draft is checked against the given model and
tool catalogs; without it every reference in the draft is assumed to exist,
so only the structural rules are enforced.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		draft, cats, err := loadDraftAndCatalogs(cmd, args[0])
		if err != nil {
			return err
		}
		if _, _, err := agentgraph.ValidateDraft(draft.Name, draft.Description, draft.Graph, cats); err != nil {
			var verr *graph.ValidationError
			if errors.As(err, &verr) && verr.Entity != "" {
				return fmt.Errorf("invalid: %s (at %s)", verr.Msg, verr.Entity)
			}
			return fmt.Errorf("invalid: %w", err)
		}
		fmt.Printf("%s is valid: %d nodes, %d edges, entry %q\n",
			args[0], len(draft.Graph.Nodes), len(draft.Graph.Edges), draft.Graph.EntryNode)
		return nil
	},
}

func init() {
	validateCmd.Flags().String("catalog", "", "Path to a catalog YAML file with models and tools")
	rootCmd.AddCommand(validateCmd)
}

// draftFile is the on-disk shape of a workflow draft.
type draftFile struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Graph       graph.Input `yaml:",inline"`
}

type catalogFile struct {
	Models []struct {
		ID       string `yaml:"id"`
		Provider string `yaml:"provider"`
		Name     string `yaml:"name"`
	} `yaml:"models"`
	Tools []struct {
		ID           string   `yaml:"id"`
		Name         string   `yaml:"name"`
		Description  string   `yaml:"description"`
		InputFields  []string `yaml:"inputFields"`
		OutputFields []string `yaml:"outputFields"`
	} `yaml:"tools"`
}

func loadDraftAndCatalogs(cmd *cobra.Command, path string) (draftFile, graph.Catalogs, error) {
	var draft draftFile
	data, err := os.ReadFile(path)
	if err != nil {
		return draft, graph.Catalogs{}, err
	}
	if err := yaml.Unmarshal(data, &draft); err != nil {
		return draft, graph.Catalogs{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	catalogPath, _ := cmd.Flags().GetString("catalog")
	if catalogPath == "" {
		return draft, permissiveCatalogs(draft.Graph), nil
	}
	cats, err := loadCatalogFile(catalogPath)
	return draft, cats, err
}

func loadCatalogFile(path string) (graph.Catalogs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return graph.Catalogs{}, err
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return graph.Catalogs{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	models := make([]graph.Model, 0, len(file.Models))
	for _, m := range file.Models {
		models = append(models, graph.Model{ID: m.ID, Provider: m.Provider, Name: m.Name})
	}
	tools := make([]graph.Tool, 0, len(file.Tools))
	for _, t := range file.Tools {
		tools = append(tools, graph.Tool{
			ID:           t.ID,
			Name:         t.Name,
			Description:  t.Description,
			InputFields:  t.InputFields,
			OutputFields: t.OutputFields,
		})
	}
	return graph.NewCatalogs(models, tools), nil
}

// permissiveCatalogs builds catalogs containing exactly the references the
// draft makes, so structural validation can run without a catalog file.
func permissiveCatalogs(in graph.Input) graph.Catalogs {
	var models []graph.Model
	var tools []graph.Tool
	seenModels := map[string]bool{}
	seenTools := map[string]bool{}
	addTool := func(id string) {
		if id != "" && !seenTools[id] {
			seenTools[id] = true
			tools = append(tools, graph.Tool{ID: id, Name: id})
		}
	}
	for _, n := range in.Nodes {
		if n.ModelID != "" && !seenModels[n.ModelID] {
			seenModels[n.ModelID] = true
			models = append(models, graph.Model{ID: n.ModelID, Provider: "local", Name: n.ModelID})
		}
		for _, id := range n.ToolIDs {
			addTool(id)
		}
	}
	return graph.NewCatalogs(models, tools)
}
