package barcode

import "strings"

// Clean strips the separators scanners and humans like to insert.
func Clean(code string) string {
	code = strings.TrimSpace(code)
	return strings.NewReplacer("-", "", " ", "").Replace(code)
}

// IsISBN reports whether code looks like an ISBN-10 or an ISBN-13.
func IsISBN(code string) bool {
	code = Clean(code)
	switch len(code) {
	case 10:
		if !allDigits(code[:9]) {
			return false
		}
		last := code[9]
		return (last >= '0' && last <= '9') || last == 'X' || last == 'x'
	case 13:
		return allDigits(code) && (strings.HasPrefix(code, "978") || strings.HasPrefix(code, "979"))
	}
	return false
}

func IsEAN13(code string) bool {
	code = Clean(code)
	return len(code) == 13 && allDigits(code)
}

func IsEAN8(code string) bool {
	code = Clean(code)
	return len(code) == 8 && allDigits(code)
}

// IsUPC accepts UPC-A codes.
func IsUPC(code string) bool {
	code = Clean(code)
	return len(code) == 12 && allDigits(code)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
