// Package util contains helper functions used around the code.
package util

// In returns true if s is found in ss, false otherwise
func In(ss []string, s string) bool {
	for _, v := range ss {
		if s == v {
			return true
		}
	}
	return false
}

// AppendUnique appends s to ss unless s is empty or already in ss. The returned slice never aliases ss.
func AppendUnique(ss []string, s string) []string {
	out := make([]string, 0, len(ss)+1)
	out = append(out, ss...)
	if s == "" || In(ss, s) {
		return out
	}
	return append(out, s)
}

// Without returns a copy of ss with every occurrence of s removed.
func Without(ss []string, s string) []string {
	out := make([]string, 0, len(ss))
	for _, v := range ss {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
