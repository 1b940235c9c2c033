package main

import (
	"flag"
	"log"
	"os"

	"github.com/macropower/skan/api/v1beta1/configs"
	"github.com/macropower/skan/pkg/yaml"
)

var outFile = flag.String("o", "schema.json", "Output file for the generated schema")

func main() {
	flag.Parse()

	gen := yaml.NewSchemaGenerator(configs.New(),
		"github.com/macropower/skan/api/v1beta1",
		"github.com/macropower/skan/api/v1beta1/configs",
		"github.com/macropower/skan/pkg/execs",
		"github.com/macropower/skan/pkg/profile",
		"github.com/macropower/skan/pkg/rule",
		"github.com/macropower/skan/pkg/scan",
	)
	jsData, err := gen.Generate()
	if err != nil {
		log.Fatalf("generate JSON schema: %v", err)
	}

	// Write schema.json file.
	err = os.WriteFile(*outFile, jsData, 0o600)
	if err != nil {
		log.Fatalf("write schema file: %v", err)
	}
}
