package compiler

import "testing"

// ---------------------------------------------------------------------------
// FuzzLexer: ensure the lexer never panics on arbitrary input.
// ---------------------------------------------------------------------------

func FuzzLexer(f *testing.F) {
	seeds := []string{
		// Basic tokens
		`( ) [ ] , : . = & *`,
		// Integers
		`42`, `0`, `18446744073709551615`, `99999999999999999999999`,
		// Identifiers and keywords
		`foo`, `__u64`, `iov_base`, `fn`, `return`, `1abc`,
		// Comparators
		`== != < > <= >=`, `=`, `!`,
		// Complete scripts
		"fn()",
		"fn(a: int)\n  return a",
		"fn(vec: &iovec)\n  vec_copy: iovec = 0\n  vec_copy.iov_base = vec.iov_base",
		"fn()\n  trace_printk(1, 2, 3)",
		"fn()\n  b = &a\n  return *b",
		"fn()\n  p.buf[3] = 7",
		// Edge cases
		``, `(`, `)`, `&`, `*`, `:`, `.`,
		"\n\n\n", "\r\n\r\n", `   `, "\t",
		// Bytes the grammar never uses
		`@ # $ % ^ ~`, `"quoted"`, `'single'`,
		// Non-ASCII
		`café`, `日本語`,
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("lexer panicked on input %q: %v", data, r)
			}
		}()

		l := NewLexer(data)
		for i := 0; i < len(data)+100; i++ {
			if tok := l.NextToken(); tok.Type == TokenEOF {
				break
			}
		}
	})
}

// ---------------------------------------------------------------------------
// FuzzCompile: feed arbitrary scripts through the full pipeline
// (parse -> lower -> optimize). Errors are fine, panics are not.
// ---------------------------------------------------------------------------

func FuzzCompile(f *testing.F) {
	seeds := []string{
		"fn()",
		"fn()\n  return 300",
		"fn(a: int)\n  return a",
		"fn(a: &u64)\n  return *a",
		"fn()\n  vec: iovec = 0\n  vec.iov_base = 100\n  vec.iov_len = 200",
		"fn(vec: &iovec)\n  vec_copy: iovec = 0\n  vec_copy.iov_base = vec.iov_base\n  return 50",
		"fn()\n  a: __u64 = get_current_uid_gid()",
		"fn()\n  return get_current_uid_gid(get_current_uid_gid())",
		"fn()\n  a: u64 = 5\n  b = &a",
		"fn()\n  p: packet = 0\n  p.buf[1] = 7",
		"fn()\n  a: u32 = 1\n  a = 2",
		"fn()\n  outer = 5",
		"fn()\n  return outer.x[0]",
		// Structurally broken inputs
		"", "fn", "fn(", "fn()\n  a: = 1", "fn()\n  return 1 2",
		"fn()\n  a: no_such_type = 1",
		"fn()\n  not_a_helper()",
		"fn()\n  a: u8 = 99999",
		"fn(a: int, b: int, c: int, d: int, e: int, f: int)",
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("compiler panicked on input %q: %v", data, r)
			}
		}()

		c := New(testDatabase(t))
		c.Capture("outer", 0xdeadbeef)
		if err := c.Compile(data); err != nil {
			return // compile errors are fine
		}
		_ = c.Bytecode()
	})
}
