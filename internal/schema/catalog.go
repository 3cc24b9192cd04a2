package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk layout of a YAML catalog.
//
//	tables:
//	  - name: customers
//	    displayName: Customers
//	    urlEndpoint: /api/customers
//	    columns:
//	      - name: email
//	        displayName: Email
//	        dataType: VARCHAR
//	        required: true
//	        maxLength: 255
type catalogFile struct {
	Tables []Table `yaml:"tables"`
}

// Load reads a YAML catalog from r.
func Load(r io.Reader) (*Catalog, error) {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("catalog is empty")
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := NewCatalog()
	for _, t := range f.Tables {
		for i := range t.Columns {
			dt, err := ParseDataType(string(t.Columns[i].DataType))
			if err != nil {
				return nil, fmt.Errorf("table %s column %s: %w", t.Name, t.Columns[i].Name, err)
			}
			t.Columns[i].DataType = dt
		}
		if err := c.Add(t); err != nil {
			return nil, err
		}
	}

	if c.Len() == 0 {
		return nil, fmt.Errorf("catalog defines no tables")
	}
	return c, nil
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	return Load(f)
}
