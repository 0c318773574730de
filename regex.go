package glow

import "regexp"

// isRegexLiteral reports whether s is a delimited regex literal per §6: its
// first and last non-escaped character match a chosen delimiter, with
// trailing modifier letters after the closing delimiter. `/pattern/i` is the
// conventional form; a bare string is treated as a plain literal pattern
// instead.
func isRegexLiteral(s string) bool {
	if len(s) < 2 {
		return false
	}
	delim := s[0]
	if delim == '\\' || (delim >= '0' && delim <= '9') {
		return false
	}
	for i := len(s) - 1; i > 0; i-- {
		if s[i] == delim && s[i-1] != '\\' {
			return true
		}
		if !isRegexModifierLetter(s[i]) {
			return false
		}
	}
	return false
}

func isRegexModifierLetter(b byte) bool {
	return b == 'i' || b == 'm' || b == 's'
}

// parseRegexLiteral splits a delimited regex literal into its Go-regexp
// pattern (with `(?flags)` prepended per any trailing modifiers) or, for a
// plain undelimited string, returns it escaped with regexp.QuoteMeta so it
// matches literally.
func parseRegexLiteral(s string) string {
	if !isRegexLiteral(s) {
		return regexp.QuoteMeta(s)
	}
	delim := s[0]
	end := len(s) - 1
	for end > 0 && isRegexModifierLetter(s[end]) {
		end--
	}
	mods := s[end+1:]
	body := s[1:end]
	if mods == "" {
		return body
	}
	return "(?" + mods + ")" + body
}

func compileRegex(vm *VM, pattern string) (*regexp.Regexp, bool) {
	re, err := regexp.Compile(parseRegexLiteral(pattern))
	if err != nil {
		vm.runtimeErrorf("invalid regular expression: %v", err)
		return nil, false
	}
	return re, true
}

func regexMatches(vm *VM, self Value, pattern string) (Value, bool) {
	re, ok := compileRegex(vm, pattern)
	if !ok {
		return Nil, false
	}
	return Bool(re.MatchString(string(self.obj.asString().Bytes))), true
}

// regexMatch returns a list of submatches (the whole match plus any capture
// groups) for the first match, or nil if there is no match.
func regexMatch(vm *VM, self Value, pattern string) (Value, bool) {
	re, ok := compileRegex(vm, pattern)
	if !ok {
		return Nil, false
	}
	groups := re.FindStringSubmatch(string(self.obj.asString().Bytes))
	if groups == nil {
		return Nil, true
	}
	items := make([]Value, len(groups))
	for i, g := range groups {
		items[i] = vm.newStringValue(g)
	}
	return Obj(vm.newObject(ObjTypeList, &ObjList{Items: items})), true
}

func regexReplace(vm *VM, self Value, pattern, replacement string) (Value, bool) {
	re, ok := compileRegex(vm, pattern)
	if !ok {
		return Nil, false
	}
	s := string(self.obj.asString().Bytes)
	return vm.newStringValue(re.ReplaceAllString(s, replacement)), true
}
