package main

import (
	"log"
	"os"

	"github.com/ad/go-rescue-academy/internal/catalog"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	workbookPath := os.Getenv("WORKBOOK_PATH")
	if len(os.Args) > 1 {
		workbookPath = os.Args[1]
	}
	if workbookPath == "" {
		log.Fatal("usage: catalog-import <workbook.xlsx> (or set WORKBOOK_PATH)")
	}

	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = "./catalog.yaml"
	}

	n, err := importWorkbook(workbookPath, catalogPath)
	if err != nil {
		log.Fatalf("Failed to import catalog: %v", err)
	}

	log.Printf("Imported %d modules into %s", n, catalogPath)
}

// importWorkbook converts the workbook to YAML. Nothing is written unless
// the imported modules pass validation.
func importWorkbook(workbookPath, catalogPath string) (int, error) {
	in, err := os.Open(workbookPath)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	log.Printf("Reading %s...", workbookPath)
	modules, err := catalog.ImportWorkbook(in)
	if err != nil {
		return 0, err
	}
	if err := catalog.Validate(modules); err != nil {
		return 0, err
	}

	out, err := os.Create(catalogPath)
	if err != nil {
		return 0, err
	}
	if err := catalog.Write(out, modules); err != nil {
		out.Close()
		return 0, err
	}
	return len(modules), out.Close()
}
