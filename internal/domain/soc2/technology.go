package soc2

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// sniffLimit caps how much of a file IdentifyTechnology reads.
const sniffLimit = 1 << 20

// binarySniffBytes is the prefix inspected for NUL bytes.
const binarySniffBytes = 8 << 10

// ignoredExts never classify: documentation, media, archives, lockfiles and
// source languages the pattern library has no rules for.
var ignoredExts = map[string]struct{}{
	".md": {}, ".markdown": {}, ".txt": {}, ".rst": {}, ".adoc": {}, ".pdf": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".ico": {}, ".webp": {},
	".zip": {}, ".gz": {}, ".tgz": {}, ".tar": {}, ".bz2": {}, ".xz": {}, ".jar": {},
	".lock": {}, ".sum": {}, ".mod": {}, ".map": {},
	".go": {}, ".py": {}, ".java": {}, ".rb": {}, ".rs": {}, ".c": {}, ".h": {},
	".cpp": {}, ".cs": {}, ".php": {}, ".kt": {}, ".swift": {}, ".scala": {},
	".html": {}, ".css": {}, ".scss": {}, ".sql": {}, ".toml": {}, ".ini": {}, ".cfg": {},
}

var ignoredNames = map[string]struct{}{
	"package-lock.json": {}, "yarn.lock": {}, "pnpm-lock.yaml": {}, "composer.lock": {},
	".terraform.lock.hcl": {},
}

var (
	reK8sAPIVersion = regexp.MustCompile(`(?m)(^|[{,])\s*"?apiVersion"?\s*:`)
	reK8sKind       = regexp.MustCompile(`(?m)(^|[{,])\s*"?kind"?\s*:`)
	reAnsible       = regexp.MustCompile(`(?m)^[ \t]*(-[ \t]+)?(hosts|tasks)\s*:`)
	reTerraform     = regexp.MustCompile(`(?m)^[ \t]*(resource|provider|module|data)\s+"[^"]+"`)
	reDockerFrom    = regexp.MustCompile(`(?m)^[ \t]*FROM[ \t]+\S+`)
	reDockerInstr   = regexp.MustCompile(`(?m)^[ \t]*(RUN|CMD|ENTRYPOINT|COPY|WORKDIR)[ \t]+`)
	reJSImportFrom  = regexp.MustCompile(`(?m)^[ \t]*import\s+.+\s+from\s+["']`)
)

// IdentifyTechnology classifies the file at path by name, then by content.
// Unreadable files are reported as unrecognized rather than as an error.
func IdentifyTechnology(path string) (Technology, bool) {
	name := filepath.Base(path)
	if ignored(name) {
		return "", false
	}
	if t, ok := technologyByName(name); ok {
		return t, true
	}
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, sniffLimit))
	if err != nil {
		return "", false
	}
	if isBinary(data) || !utf8.Valid(data) {
		return "", false
	}
	return ClassifyContent(name, string(data))
}

// ClassifyContent decides the technology of a file from its name and text.
func ClassifyContent(name, content string) (Technology, bool) {
	base := filepath.Base(name)
	if ignored(base) || isBinary([]byte(prefix(content, binarySniffBytes))) {
		return "", false
	}
	if t, ok := technologyByName(base); ok {
		return t, true
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".yaml", ".yml", ".json":
		return sniffStructured(content)
	}
	if t, ok := sniffStructured(content); ok {
		return t, true
	}
	switch {
	case reTerraform.MatchString(content):
		return Terraform, true
	case reDockerFrom.MatchString(content) && reDockerInstr.MatchString(content):
		return Docker, true
	case looksLikeJavaScript(content):
		return JavaScript, true
	}
	return "", false
}

func technologyByName(name string) (Technology, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tf"), strings.HasSuffix(lower, ".tfvars"), strings.HasSuffix(lower, ".tf.json"):
		return Terraform, true
	case lower == "dockerfile", strings.HasPrefix(lower, "dockerfile."), strings.HasSuffix(lower, ".dockerfile"):
		return Docker, true
	case strings.HasSuffix(lower, ".template"),
		strings.HasSuffix(lower, ".cfn.yaml"), strings.HasSuffix(lower, ".cfn.yml"), strings.HasSuffix(lower, ".cfn.json"):
		return CloudFormation, true
	}
	switch filepath.Ext(lower) {
	case ".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx":
		return JavaScript, true
	case ".yml", ".yaml":
		if strings.HasPrefix(lower, "playbook") || strings.TrimSuffix(strings.TrimSuffix(lower, ".yml"), ".yaml") == "site" {
			return Ansible, true
		}
	}
	return "", false
}

// sniffStructured distinguishes CloudFormation, Kubernetes and Ansible documents.
func sniffStructured(content string) (Technology, bool) {
	switch {
	case strings.Contains(content, "AWSTemplateFormatVersion"),
		strings.Contains(content, "Resources") && strings.Contains(content, "AWS::"):
		return CloudFormation, true
	case reK8sAPIVersion.MatchString(content) && reK8sKind.MatchString(content):
		return Kubernetes, true
	case reAnsible.MatchString(content):
		return Ansible, true
	}
	return "", false
}

func looksLikeJavaScript(content string) bool {
	signals := 0
	for _, tok := range []string{"function", "const ", "require(", "module.exports", "=>"} {
		if strings.Contains(content, tok) {
			signals++
		}
	}
	if reJSImportFrom.MatchString(content) {
		signals++
	}
	return signals >= 2
}

func ignored(name string) bool {
	lower := strings.ToLower(name)
	if _, ok := ignoredNames[lower]; ok {
		return true
	}
	_, ok := ignoredExts[filepath.Ext(lower)]
	return ok
}

func isBinary(data []byte) bool {
	if len(data) > binarySniffBytes {
		data = data[:binarySniffBytes]
	}
	return bytes.IndexByte(data, 0) >= 0
}

func prefix(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
