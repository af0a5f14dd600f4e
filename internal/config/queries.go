package config

import "fmt"

// OllamaDefaultPort is the standard Ollama listen port, assumed when a
// search match does not advertise one.
const OllamaDefaultPort = 11434

// LlamaCppCommonPorts are the ports a portless llama.cpp match is fanned
// out across.
var LlamaCppCommonPorts = []int{8080, 8000, 3000, 7860, 5000, 8888}

// ollamaQueries is the built-in query list for the Ollama family.
var ollamaQueries = []string{
	`product:"Ollama"`,
	"port:11434",
	"ollama",
	`http.title:"Ollama"`,
	`"Ollama API" port:11434`,
	`"Ollama API"`,
	"http.favicon.hash:-1959422854",
	`http.html:"ollama"`,
	`http.component:"Ollama"`,
	`"Content-Type: text/plain" port:11434`,
	`port:11434 "HTTP/1.1 200 OK"`,
	"http.status:200 port:11434",
	`http.response.headers.content-type:"text/plain" port:11434`,
}

// llamaCppQueries is the built-in query list for the llama.cpp family; the
// base list is extended with one title query per common port.
var llamaCppQueries = buildLlamaCppQueries()

func buildLlamaCppQueries() []string {
	queries := []string{
		`title:"llama.cpp"`,
		`title:"llama.cpp - chat"`,
		`server:"llama.cpp"`,
		`http.html:"llama.cpp"`,
		`http.html:"llama-cpp-python"`,
		`product:"llama.cpp"`,
	}
	for _, port := range LlamaCppCommonPorts {
		queries = append(queries, fmt.Sprintf(`port:%d title:"llama.cpp"`, port))
	}
	return queries
}

// QueriesFor returns the query list for a family, preferring configured
// overrides over the built-ins.
func (c *Config) QueriesFor(family Family) []string {
	switch family {
	case FamilyOllama:
		if len(c.Queries.Ollama) > 0 {
			return c.Queries.Ollama
		}
		return ollamaQueries
	case FamilyLlamaCpp:
		if len(c.Queries.LlamaCpp) > 0 {
			return c.Queries.LlamaCpp
		}
		return llamaCppQueries
	default:
		return nil
	}
}
