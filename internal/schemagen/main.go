// Command schemagen writes the JSON schema of the opsbox configuration file,
// with descriptions taken from the Go doc comments of the config types.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/opsbox/opsbox/api/v1beta1/configs"
	"github.com/opsbox/opsbox/pkg/yaml"
)

const modulePath = "github.com/opsbox/opsbox"

var (
	outFile = flag.String("o", "configs.v1beta1.json", "Output file for the generated schema")
	rootDir = flag.String("root", ".", "Module root directory")
)

func main() {
	flag.Parse()

	out, err := filepath.Abs(*outFile)
	if err != nil {
		log.Fatalf("resolve output path: %v", err)
	}

	err = os.Chdir(*rootDir)
	if err != nil {
		log.Fatalf("change to module root: %v", err)
	}

	jsData, err := yaml.NewSchemaGenerator(&configs.Config{}).
		WithComments(modulePath,
			"api/v1beta1",
			"api/v1beta1/configs",
			"pkg/proxy",
			"pkg/apply",
			"pkg/transcribe",
			"pkg/execs",
		).
		Generate()
	if err != nil {
		log.Fatalf("generate JSON schema: %v", err)
	}

	err = os.WriteFile(out, jsData, 0o600)
	if err != nil {
		log.Fatalf("write schema file: %v", err)
	}
}
