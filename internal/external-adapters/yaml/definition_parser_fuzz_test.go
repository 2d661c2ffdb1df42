package yaml

import "testing"

// FuzzDefinitionParser tests the YAML parser with random inputs
func FuzzDefinitionParser(f *testing.F) {
	f.Add([]byte("name: app\n"))
	f.Add([]byte("name: app\nruntime:\n  port: 3000\n"))
	f.Add([]byte("name: app\nartifact:\n  required: [.next]\n  optional: []\n"))
	f.Add([]byte("build:\n  env:\n    A: b\n"))
	f.Add([]byte(""))
	f.Add([]byte("{{{"))

	parser := NewDefinitionParser()
	f.Fuzz(func(t *testing.T, data []byte) {
		def, err := parser.Parse(data)
		if err != nil {
			return
		}
		if def.Name == "" {
			t.Errorf("accepted definition without name")
		}
		if def.Runtime.Port < 1 || def.Runtime.Port > 65535 {
			t.Errorf("accepted port %d", def.Runtime.Port)
		}
	})
}
