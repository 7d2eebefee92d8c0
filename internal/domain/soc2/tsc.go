package soc2

import "strings"

// tscCode is one Trust Services Criterion with its fixed description.
type tscCode struct {
	Code        string
	Description string
}

// tscCodes is the static criteria table, in report order.
var tscCodes = []tscCode{
	{"CC1.1", "Commitment to integrity and ethical values"},
	{"CC1.2", "Board independence and oversight of internal control"},
	{"CC2.1", "Information to support the functioning of internal control"},
	{"CC3.1", "Objectives specified to identify and assess risks"},
	{"CC3.2", "Risks to objectives identified and analyzed"},
	{"CC4.1", "Ongoing and separate evaluations of internal control"},
	{"CC5.1", "Control activities selected and developed to mitigate risks"},
	{"CC5.2", "General controls over technology selected and developed"},
	{"CC6.1", "Logical access security software, infrastructure and architectures"},
	{"CC6.2", "Registration and authorization of new users"},
	{"CC6.3", "Role-based access, least privilege and segregation of duties"},
	{"CC6.4", "Physical access to facilities and protected assets restricted"},
	{"CC6.5", "Logical and physical protections discontinued on disposal"},
	{"CC6.6", "Security measures against threats from outside system boundaries"},
	{"CC6.7", "Transmission, movement and removal of information restricted and protected"},
	{"CC6.8", "Controls to prevent or detect unauthorized or malicious software"},
	{"CC7.1", "Detection and monitoring of configuration changes and vulnerabilities"},
	{"CC7.2", "Monitoring of system components for anomalies"},
	{"CC7.3", "Evaluation of security events"},
	{"CC7.4", "Incident response program"},
	{"CC7.5", "Recovery from identified security incidents"},
	{"CC8.1", "Change management for infrastructure, data and software"},
	{"CC9.1", "Risk mitigation for business disruptions"},
	{"CC9.2", "Vendor and business partner risk management"},
	{"A1.1", "Capacity planning and demand management"},
	{"A1.2", "Environmental protections, backup and recovery infrastructure"},
	{"A1.3", "Recovery plan procedures tested"},
	{"PI1.1", "Quality information about processing objectives"},
	{"PI1.2", "System inputs are complete and accurate"},
	{"PI1.3", "System processing is complete, accurate and timely"},
	{"PI1.4", "System outputs are complete, accurate and distributed as intended"},
	{"PI1.5", "Stored inputs and outputs are complete and accurate"},
	{"C1.1", "Confidential information identified and protected"},
	{"C1.2", "Confidential information disposed of as intended"},
	{"P1.1", "Privacy notice provided to data subjects"},
	{"P2.1", "Choice and consent communicated to data subjects"},
	{"P3.1", "Personal information collected consistent with objectives"},
	{"P4.1", "Personal information used, retained and disposed consistent with objectives"},
	{"P5.1", "Data subjects granted access to their personal information"},
	{"P6.1", "Personal information disclosed to third parties with consent"},
	{"P7.1", "Personal information kept accurate and complete"},
	{"P8.1", "Privacy inquiries, complaints and disputes handled"},
}

var tscDescriptions = func() map[string]string {
	m := make(map[string]string, len(tscCodes))
	for _, c := range tscCodes {
		m[c.Code] = c.Description
	}
	return m
}()

// AllCodes returns every known criterion code in report order.
func AllCodes() []string {
	out := make([]string, len(tscCodes))
	for i, c := range tscCodes {
		out[i] = c.Code
	}
	return out
}

// DescribeCode returns the fixed description of a criterion code.
func DescribeCode(code string) (string, bool) {
	d, ok := tscDescriptions[code]
	return d, ok
}

// CategoryOf derives the trust services category from a code prefix.
func CategoryOf(code string) (Category, bool) {
	switch {
	case strings.HasPrefix(code, "CC"):
		return CategorySecurity, true
	case strings.HasPrefix(code, "PI"):
		return CategoryProcessingIntegrity, true
	case strings.HasPrefix(code, "A"):
		return CategoryAvailability, true
	case strings.HasPrefix(code, "C"):
		return CategoryConfidentiality, true
	case strings.HasPrefix(code, "P"):
		return CategoryPrivacy, true
	}
	return "", false
}

// criteriaByDescription maps specific pattern descriptions to their criteria.
// Keys must match RiskPattern.Description exactly.
var criteriaByDescription = map[string][]string{
	descOpenIngress:         {"CC6.6", "CC6.7"},
	descOpenIngressCFN:      {"CC6.6", "CC6.7"},
	descPublicBucketACL:     {"CC6.1", "C1.1"},
	descPublicBucketCFN:     {"CC6.1", "C1.1"},
	descUnencryptedStorage:  {"CC6.1", "CC6.7", "C1.1"},
	descUnencryptedCFN:      {"CC6.1", "CC6.7", "C1.1"},
	descPublicDatabase:      {"CC6.1", "CC6.6"},
	descPublicDatabaseCFN:   {"CC6.1", "CC6.6"},
	descHardcodedSecretTF:   {"CC6.1", "CC6.3", "C1.1"},
	descHardcodedPassCFN:    {"CC6.1", "CC6.3", "C1.1"},
	descPrivilegedContainer: {"CC6.1", "CC6.8"},
	descPrivilegeEscalation: {"CC6.1", "CC6.3", "CC6.8"},
	descHostNetwork:         {"CC6.6", "CC6.8"},
	descDockerRootUser:      {"CC6.1", "CC6.8"},
	descSecretInImage:       {"CC6.1", "C1.1"},
	descEvalUsage:           {"CC6.8", "PI1.3"},
	descInsecureTLS:         {"CC6.7"},
	descDisabledLogging:     {"CC7.2", "CC7.3"},
	descNoBackupRetention:   {"A1.2", "A1.3"},
	descSkipFinalSnapshot:   {"A1.2", "A1.3"},
	descLatestImageTag:      {"CC8.1", "PI1.2"},
	descLatestBaseImage:     {"CC8.1", "PI1.2"},
	descSensitiveLogging:    {"P4.1", "C1.1"},
	descBrowserStoragePII:   {"P4.1", "C1.1"},
}

// criteriaByCategory is the fallback when a description has no exact mapping.
var criteriaByCategory = map[Category][]string{
	CategorySecurity:            {"CC6.1", "CC6.8", "CC7.1"},
	CategoryAvailability:        {"A1.1", "A1.2"},
	CategoryProcessingIntegrity: {"PI1.1", "PI1.3"},
	CategoryConfidentiality:     {"C1.1", "C1.2"},
	CategoryPrivacy:             {"P1.1", "P4.1"},
}

// CriteriaFor resolves the TSC codes for a finding: exact description first,
// then the category table. The returned slice is a fresh copy.
func CriteriaFor(description string, category Category) []string {
	if codes, ok := criteriaByDescription[description]; ok {
		return append([]string(nil), codes...)
	}
	if codes, ok := criteriaByCategory[category]; ok {
		return append([]string(nil), codes...)
	}
	return []string{}
}
