package soc2

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Descriptions with an exact TSC mapping in criteriaByDescription.
const (
	descOpenIngress         = "Security group allows unrestricted ingress from 0.0.0.0/0"
	descOpenIngressCFN      = "Security group ingress rule open to 0.0.0.0/0"
	descPublicBucketACL     = "S3 bucket uses a public ACL"
	descPublicBucketCFN     = "S3 bucket grants public access"
	descUnencryptedStorage  = "Storage encryption is disabled"
	descUnencryptedCFN      = "Encryption explicitly disabled in template"
	descPublicDatabase      = "Database instance is publicly accessible"
	descPublicDatabaseCFN   = "RDS instance is publicly accessible"
	descHardcodedSecretTF   = "Hardcoded credential in Terraform configuration"
	descHardcodedPassCFN    = "Hardcoded password in CloudFormation template"
	descPrivilegedContainer = "Container runs in privileged mode"
	descPrivilegeEscalation = "Container allows privilege escalation"
	descHostNetwork         = "Pod shares the host network namespace"
	descDockerRootUser      = "Container configured to run as root"
	descSecretInImage       = "Secret baked into image via ENV or ARG"
	descEvalUsage           = "Dynamic code execution with eval()"
	descInsecureTLS         = "TLS certificate verification disabled"
	descDisabledLogging     = "Access logging is disabled"
	descNoBackupRetention   = "Automated backups are disabled"
	descSkipFinalSnapshot   = "Database skips final snapshot on deletion"
	descLatestImageTag      = "Container image uses the mutable latest tag"
	descLatestBaseImage     = "Base image uses the mutable latest tag"
	descSensitiveLogging    = "Sensitive data written to logs"
	descBrowserStoragePII   = "Sensitive data stored in browser storage"
)

// PatternSpec is the declarative form of a risk pattern, as written in the
// built-in table or in a YAML pattern pack.
type PatternSpec struct {
	ID             string     `yaml:"id"`
	Technology     Technology `yaml:"technology"`
	Regex          string     `yaml:"regex"`
	Description    string     `yaml:"description"`
	Severity       RiskLevel  `yaml:"severity"`
	Recommendation string     `yaml:"recommendation"`
	Category       Category   `yaml:"category"`
}

// PatternPack is the on-disk layout of a custom pattern file.
type PatternPack struct {
	Patterns []PatternSpec `yaml:"patterns"`
}

// RiskPattern is an immutable, compiled pattern shared by all scans.
type RiskPattern struct {
	ID             string
	Technology     Technology
	Regex          string
	Description    string
	Severity       RiskLevel
	Recommendation string
	Category       Category

	re *regexp.Regexp
}

// FindAll returns the [start,end) offsets of every match in content.
func (p *RiskPattern) FindAll(content string) [][]int {
	if p.re == nil {
		return nil
	}
	return p.re.FindAllStringIndex(content, -1)
}

func compilePattern(s PatternSpec) (*RiskPattern, error) {
	if !s.Technology.Valid() {
		return nil, fmt.Errorf("unknown technology %q", s.Technology)
	}
	if !s.Severity.Valid() {
		return nil, fmt.Errorf("unknown severity %q", s.Severity)
	}
	if !s.Category.Valid() {
		return nil, fmt.Errorf("unknown category %q", s.Category)
	}
	if s.Regex == "" {
		return nil, fmt.Errorf("empty regex")
	}
	re, err := regexp.Compile("(?im)" + s.Regex)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", s.Regex, err)
	}
	id := strings.TrimSpace(s.ID)
	if id == "" {
		id = PatternID(s.Technology, s.Description)
	}
	return &RiskPattern{
		ID:             id,
		Technology:     s.Technology,
		Regex:          s.Regex,
		Description:    s.Description,
		Severity:       s.Severity,
		Recommendation: s.Recommendation,
		Category:       s.Category,
		re:             re,
	}, nil
}

// Library maps each technology to its ordered risk patterns. It is read-only
// after construction and safe for concurrent use.
type Library struct {
	byTech map[Technology][]*RiskPattern
}

// NewLibrary compiles the built-in table plus any extra specs. A spec that
// fails to compile is logged and skipped; the rest of the library is kept.
func NewLibrary(extra []PatternSpec, log *zap.SugaredLogger) *Library {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	lib := &Library{byTech: make(map[Technology][]*RiskPattern)}
	all := make([]PatternSpec, 0, len(builtinPatterns)+len(extra))
	all = append(all, builtinPatterns...)
	all = append(all, extra...)
	for i, s := range all {
		p, err := compilePattern(s)
		if err != nil {
			log.Warnw("skipping risk pattern", "index", i, "technology", s.Technology, "description", s.Description, "error", err)
			continue
		}
		lib.byTech[p.Technology] = append(lib.byTech[p.Technology], p)
	}
	return lib
}

// PatternID derives a stable identifier from technology and description, e.g.
// "kubernetes/container-runs-in-privileged-mode".
func PatternID(t Technology, description string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(description) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return string(t) + "/" + strings.TrimSuffix(b.String(), "-")
}

var (
	defaultLibOnce sync.Once
	defaultLib     *Library
)

// DefaultLibrary returns the process-wide built-in library.
func DefaultLibrary() *Library {
	defaultLibOnce.Do(func() {
		defaultLib = NewLibrary(nil, nil)
	})
	return defaultLib
}

// PatternsFor returns the patterns registered for a technology.
func (l *Library) PatternsFor(t Technology) []*RiskPattern {
	return l.byTech[t]
}

// Len returns the total number of compiled patterns.
func (l *Library) Len() int {
	n := 0
	for _, ps := range l.byTech {
		n += len(ps)
	}
	return n
}

// LoadPatternPack reads a YAML pattern pack from disk.
func LoadPatternPack(path string) ([]PatternSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern pack: %w", err)
	}
	var pack PatternPack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parse pattern pack %s: %w", path, err)
	}
	return pack.Patterns, nil
}

// builtinPatterns is the static risk table. Patterns anchored at line start use
// [ \t]* rather than \s* so a match never begins on a preceding blank line.
// CloudFormation and Kubernetes keys are written "?Key"? so the same rule
// matches YAML and JSON documents.
var builtinPatterns = []PatternSpec{
	// Terraform
	{"", Terraform, `ingress\s*\{[^}]*0\.0\.0\.0/0`, descOpenIngress, RiskHigh,
		"Restrict ingress cidr_blocks to known address ranges or use security group references.", CategorySecurity},
	{"", Terraform, `\bacl\s*=\s*"public-read(-write)?"`, descPublicBucketACL, RiskHigh,
		"Set the bucket ACL to private and enable an S3 public access block.", CategoryConfidentiality},
	{"", Terraform, `\b(storage_)?encrypted\s*=\s*false`, descUnencryptedStorage, RiskHigh,
		"Enable encryption at rest with a managed KMS key.", CategoryConfidentiality},
	{"", Terraform, `publicly_accessible\s*=\s*true`, descPublicDatabase, RiskHigh,
		"Set publicly_accessible = false and reach the database through private subnets.", CategorySecurity},
	{"", Terraform, `\b\w*(password|secret_key|access_key|secret)\s*=\s*"[^"$]{4,}"`, descHardcodedSecretTF, RiskHigh,
		"Move credentials to a secrets manager or sensitive variables; never commit literal values.", CategorySecurity},
	{"", Terraform, `versioning\s*\{[^}]*enabled\s*=\s*false`, "Bucket versioning is disabled", RiskMedium,
		"Enable versioning so objects can be recovered after accidental deletion.", CategoryAvailability},
	{"", Terraform, `skip_final_snapshot\s*=\s*true`, descSkipFinalSnapshot, RiskMedium,
		"Set skip_final_snapshot = false and name a final snapshot identifier.", CategoryAvailability},
	{"", Terraform, `backup_retention_period\s*=\s*0\b`, descNoBackupRetention, RiskMedium,
		"Set a backup retention period of at least 7 days.", CategoryAvailability},
	{"", Terraform, `enable_logging\s*=\s*false`, descDisabledLogging, RiskMedium,
		"Enable access logging and ship logs to a central, retained store.", CategorySecurity},
	{"", Terraform, `protocol\s*=\s*"HTTP"`, "Load balancer listener accepts plain HTTP", RiskMedium,
		"Terminate TLS on the listener and redirect HTTP to HTTPS.", CategorySecurity},
	{"", Terraform, `deletion_protection\s*=\s*false`, "Deletion protection is disabled", RiskLow,
		"Enable deletion protection on stateful production resources.", CategoryAvailability},
	{"", Terraform, `multi_az\s*=\s*false`, "Multi-AZ deployment is disabled", RiskLow,
		"Enable multi-AZ for production databases.", CategoryAvailability},

	// CloudFormation
	{"", CloudFormation, `"?CidrIp"?\s*:\s*["']?0\.0\.0\.0/0`, descOpenIngressCFN, RiskHigh,
		"Limit CidrIp to trusted ranges or reference a source security group.", CategorySecurity},
	{"", CloudFormation, `"?PubliclyAccessible"?\s*:\s*["']?true`, descPublicDatabaseCFN, RiskHigh,
		"Set PubliclyAccessible to false and place the instance in private subnets.", CategorySecurity},
	{"", CloudFormation, `"?AccessControl"?\s*:\s*["']?Public(Read|ReadWrite)`, descPublicBucketCFN, RiskHigh,
		"Use AccessControl: Private together with a PublicAccessBlockConfiguration.", CategoryConfidentiality},
	{"", CloudFormation, `"?(StorageEncrypted|Encrypted)"?\s*:\s*["']?false`, descUnencryptedCFN, RiskHigh,
		"Enable encryption and specify a KmsKeyId.", CategoryConfidentiality},
	{"", CloudFormation, `"?(MasterUserPassword|Password)"?\s*:\s*["']?[A-Za-z0-9][^\s"'{}]{5,}`, descHardcodedPassCFN, RiskHigh,
		"Resolve passwords from Secrets Manager or SSM SecureString parameters.", CategorySecurity},
	{"", CloudFormation, `"?DeletionPolicy"?\s*:\s*["']?Delete`, "Resource is deleted together with the stack", RiskMedium,
		"Use DeletionPolicy: Retain or Snapshot for stateful resources.", CategoryAvailability},
	{"", CloudFormation, `"?BackupRetentionPeriod"?\s*:\s*["']?0\b`, descNoBackupRetention, RiskMedium,
		"Set BackupRetentionPeriod to at least 7 days.", CategoryAvailability},
	{"", CloudFormation, `"?MultiAZ"?\s*:\s*["']?false`, "Multi-AZ deployment is disabled", RiskLow,
		"Enable MultiAZ for production databases.", CategoryAvailability},

	// Kubernetes
	{"", Kubernetes, `"?privileged"?\s*:\s*true`, descPrivilegedContainer, RiskHigh,
		"Remove privileged: true and grant only the specific capabilities required.", CategorySecurity},
	{"", Kubernetes, `"?allowPrivilegeEscalation"?\s*:\s*true`, descPrivilegeEscalation, RiskHigh,
		"Set allowPrivilegeEscalation: false in the container securityContext.", CategorySecurity},
	{"", Kubernetes, `"?hostNetwork"?\s*:\s*true`, descHostNetwork, RiskHigh,
		"Disable hostNetwork and expose the workload through a Service.", CategorySecurity},
	{"", Kubernetes, `"?(password|api[_-]?key|secret[_-]?key|token)"?\s*:\s*["']?[A-Za-z0-9+/=_\-]{8,}`, "Secret value committed in manifest", RiskHigh,
		"Reference credentials through Secret objects backed by an external secret store.", CategoryConfidentiality},
	{"", Kubernetes, `"?hostPID"?\s*:\s*true`, "Pod shares the host PID namespace", RiskMedium,
		"Disable hostPID unless the workload is a node-level agent.", CategorySecurity},
	{"", Kubernetes, `"?runAsUser"?\s*:\s*0\b`, "Container runs as root user", RiskMedium,
		"Run as a non-root UID and set runAsNonRoot: true.", CategorySecurity},
	{"", Kubernetes, `"?image"?\s*:\s*["']?[^\s"']+:latest\b`, descLatestImageTag, RiskMedium,
		"Pin images to an immutable version tag or digest.", CategoryProcessingIntegrity},
	{"", Kubernetes, `"?readOnlyRootFilesystem"?\s*:\s*false`, "Container root filesystem is writable", RiskLow,
		"Set readOnlyRootFilesystem: true and mount writable volumes explicitly.", CategorySecurity},
	{"", Kubernetes, `"?type"?\s*:\s*["']?LoadBalancer`, "Service exposed through a public load balancer", RiskLow,
		"Confirm external exposure is intended and restrict loadBalancerSourceRanges.", CategorySecurity},

	// Docker
	{"", Docker, `^[ \t]*USER[ \t]+root\b`, descDockerRootUser, RiskHigh,
		"Create an unprivileged user and switch to it with USER.", CategorySecurity},
	{"", Docker, `^[ \t]*(ENV|ARG)[ \t]+\S*(PASSWORD|SECRET|API_KEY|TOKEN)\S*([ \t]+|=)\S+`, descSecretInImage, RiskHigh,
		"Inject secrets at runtime or use BuildKit secret mounts instead of ENV/ARG.", CategoryConfidentiality},
	{"", Docker, `^[ \t]*FROM[ \t]+\S+:latest\b`, descLatestBaseImage, RiskMedium,
		"Pin the base image to a specific version or digest.", CategoryProcessingIntegrity},
	{"", Docker, `^[ \t]*ADD[ \t]+https?://`, "Remote file fetched with ADD", RiskMedium,
		"Download with curl/wget and verify a checksum, or COPY vetted artifacts.", CategorySecurity},
	{"", Docker, `^[ \t]*EXPOSE[ \t]+22\b`, "SSH port exposed by container", RiskMedium,
		"Do not run SSH in containers; use orchestrator exec tooling instead.", CategorySecurity},
	{"", Docker, `(curl|wget)[^\n|]*\|[ \t]*(ba)?sh\b`, "Remote script piped directly to a shell", RiskMedium,
		"Download scripts, verify their checksum, then execute.", CategoryProcessingIntegrity},
	{"", Docker, `chmod[ \t]+(-R[ \t]+)?777`, "World-writable permissions set", RiskMedium,
		"Grant the narrowest permissions the process needs.", CategorySecurity},

	// JavaScript
	{"", JavaScript, `\beval\s*\(`, descEvalUsage, RiskHigh,
		"Replace eval() with explicit parsing or a safe dispatch table.", CategorySecurity},
	{"", JavaScript, `\b(password|secret|api_?key|access_?token|auth_?token)\s*[:=]\s*["'][^"']{6,}["']`, "Hardcoded secret in source code", RiskHigh,
		"Load secrets from environment variables or a secrets manager.", CategoryConfidentiality},
	{"", JavaScript, `rejectUnauthorized\s*:\s*false`, descInsecureTLS, RiskHigh,
		"Keep certificate verification enabled and trust a proper CA bundle.", CategorySecurity},
	{"", JavaScript, `console\.(log|info|debug)\([^)]*(password|token|secret|ssn)`, descSensitiveLogging, RiskMedium,
		"Remove sensitive values from log statements or redact them.", CategoryPrivacy},
	{"", JavaScript, `(localStorage|sessionStorage)\.setItem\([^)]*(token|password|email|ssn)`, descBrowserStoragePII, RiskMedium,
		"Keep tokens in httpOnly cookies and avoid persisting personal data client-side.", CategoryPrivacy},
	{"", JavaScript, `["'` + "`" + `]http://[a-z0-9.-]+\.[a-z]{2,}`, "Unencrypted HTTP endpoint referenced", RiskMedium,
		"Use HTTPS endpoints for all external calls.", CategorySecurity},
	{"", JavaScript, `\.innerHTML\s*=`, "Unsafe HTML injection via innerHTML", RiskMedium,
		"Use textContent or a sanitizer before inserting HTML.", CategorySecurity},
	{"", JavaScript, `(Access-Control-Allow-Origin["']?\s*[,:]\s*["']\*|origin\s*:\s*["']\*["'])`, "Permissive CORS policy allows any origin", RiskMedium,
		"Restrict allowed origins to the application's own domains.", CategorySecurity},
	{"", JavaScript, `Math\.random\(\)`, "Weak randomness from Math.random()", RiskLow,
		"Use crypto.getRandomValues() or crypto.randomUUID() for security-sensitive values.", CategorySecurity},

	// Ansible
	{"", Ansible, `validate_certs:\s*["']?(no|false)\b`, descInsecureTLS, RiskHigh,
		"Keep validate_certs enabled.", CategorySecurity},
	{"", Ansible, `(password|secret):\s*["']?[^\s"'{!][^\s"']{5,}`, "Plaintext password in playbook", RiskHigh,
		"Store secrets with ansible-vault or an external lookup.", CategoryConfidentiality},
	{"", Ansible, `mode:\s*["']?0?777`, "World-writable file mode", RiskMedium,
		"Use the narrowest file mode the service needs.", CategorySecurity},
	{"", Ansible, `no_log:\s*["']?(no|false)\b`, "Sensitive task output not suppressed", RiskMedium,
		"Set no_log: true on tasks that handle credentials or personal data.", CategoryPrivacy},
	{"", Ansible, `become_user:\s*["']?root\b`, "Task escalates to root", RiskLow,
		"Escalate only for the tasks that require it and prefer a dedicated service account.", CategorySecurity},
}
