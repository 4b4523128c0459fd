package execution

import "unicode/utf8"

// InvalidOutput replaces captured output that is not valid UTF-8.
const InvalidOutput = "<Invalid UTF-8 Output>"

func decodeText(b []byte) string {
	if !utf8.Valid(b) {
		return InvalidOutput
	}

	return string(b)
}
