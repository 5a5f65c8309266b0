// Package errors provides structured, actionable errors for the barehttp
// command and its configuration loader.
//
// Every error has a registered code (e.g. "E101") that carries a category,
// a short message, a longer detail and usually a hint. Errors raised while
// reading a configuration file also carry the file position and the lines
// around it.
//
// # Categories
//
//   - config: configuration file and value errors
//   - server: listen, serve and shutdown failures
//   - routing: rejected route patterns
//   - network: probe connection and response errors
//   - cli: command usage errors
//
// # Usage
//
//	err := errors.New("E101").
//	    WithLocation("barehttp.yaml", 4, 0).
//	    Wrap(yamlErr)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E101: Config file could not be parsed
//	//
//	//   barehttp.yaml:4
//	//
//	//        2 │ server:
//	//        3 │   address: ":8080"
//	//   →    4 │   read_timeout: [10s
//	//        5 │ log:
//	//
//	//   The configuration file is not valid YAML or JSON.
//	//
//	//   Cause: yaml: line 4: did not find expected ',' or ']'
//	//
//	//   Hint: Check indentation and quoting near the reported line.
package errors
