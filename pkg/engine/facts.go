package engine

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Known OS families.
const (
	OSFamilyDebian = "Debian"
	OSFamilyRedHat = "RedHat"
	OSFamilySuse   = "Suse"
)

// DefaultOSReleasePath is where local OS identification is read from.
const DefaultOSReleasePath = "/etc/os-release"

// familyByID maps os-release IDs to their family.
var familyByID = map[string]string{
	"debian":    OSFamilyDebian,
	"ubuntu":    OSFamilyDebian,
	"rhel":      OSFamilyRedHat,
	"centos":    OSFamilyRedHat,
	"fedora":    OSFamilyRedHat,
	"rocky":     OSFamilyRedHat,
	"almalinux": OSFamilyRedHat,
	"suse":      OSFamilySuse,
	"opensuse":  OSFamilySuse,
	"sles":      OSFamilySuse,
}

// DiscoverLocalFacts derives facts for the machine this process runs on.
func DiscoverLocalFacts(osReleasePath string) (Facts, error) {
	if osReleasePath == "" {
		osReleasePath = DefaultOSReleasePath
	}

	f, err := os.Open(osReleasePath)
	if err != nil {
		return Facts{}, NewPermanentError("failed to read os-release", err).
			WithCode(ErrCodeNotFound).WithSubject(osReleasePath)
	}
	defer f.Close()

	family, err := ParseOSFamily(f)
	if err != nil {
		return Facts{}, err
	}

	facts := Facts{
		OSFamily:       family,
		ProcessorCount: strconv.Itoa(runtime.NumCPU()),
	}

	log.Debug().
		Str("osfamily", facts.OSFamily).
		Str("processorcount", facts.ProcessorCount).
		Msg("Discovered local facts")

	return facts, nil
}

// ParseOSFamily reads os-release content and returns the OS family.
// ID is consulted first, then each entry of ID_LIKE.
func ParseOSFamily(r io.Reader) (string, error) {
	var id string
	var idLike []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "ID="):
			id = strings.ToLower(strings.Trim(strings.TrimPrefix(line, "ID="), "\"'"))
		case strings.HasPrefix(line, "ID_LIKE="):
			idLike = strings.Fields(strings.ToLower(strings.Trim(strings.TrimPrefix(line, "ID_LIKE="), "\"'")))
		}
	}
	if err := scanner.Err(); err != nil {
		return "", NewPermanentError("failed to scan os-release", err).WithCode(ErrCodeInvalidInput)
	}

	for _, candidate := range append([]string{id}, idLike...) {
		if family, ok := familyByID[candidate]; ok {
			return family, nil
		}
	}

	if id == "" {
		return "", NewPermanentError("os-release has no ID", nil).WithCode(ErrCodeInvalidInput)
	}
	return "", NewPermanentError(fmt.Sprintf("unknown OS family for ID %q", id), nil).
		WithCode(ErrCodeUnsupported)
}
