package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// printOutput renders a result as indented JSON, optionally filtered through
// the --jq expression.
func printOutput(c *cli.Context, v interface{}) error {
	expr := c.String("jq")
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if expr == "" {
		return enc.Encode(v)
	}

	results, err := applyJQ(v, expr)
	if err != nil {
		return err
	}
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// applyJQ runs a jq expression over the JSON form of v and returns every
// emitted value.
func applyJQ(v interface{}, expr string) ([]interface{}, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq expression %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq expression %q: %w", expr, err)
	}

	// gojq wants generic JSON values, not structs.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to unmarshal value: %w", err)
	}

	var out []interface{}
	iter := code.Run(generic)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("jq evaluation failed: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}
