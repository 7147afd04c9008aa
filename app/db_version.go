package app

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// currentDatabaseVersion is bumped whenever the tracked item serialization
// changes incompatibly
const currentDatabaseVersion = 1

// checkDatabaseVersion makes sure the database in dbPath was written with
// the current version, and records the version if the database is new
func checkDatabaseVersion(dbPath string) error {
	versionBytes, err := os.ReadFile(versionFilePath(dbPath))
	if os.IsNotExist(err) {
		return createDatabaseVersionFile(dbPath)
	}
	if err != nil {
		return errors.WithStack(err)
	}

	databaseVersion, err := strconv.Atoi(strings.TrimSpace(string(versionBytes)))
	if err != nil {
		return errors.Wrapf(err, "malformed database version file in %s", dbPath)
	}
	if databaseVersion != currentDatabaseVersion {
		return errors.Errorf("Invalid database version %d. Expected version: %d", databaseVersion, currentDatabaseVersion)
	}
	return nil
}

func createDatabaseVersionFile(dbPath string) error {
	err := os.MkdirAll(dbPath, 0700)
	if err != nil {
		return errors.WithStack(err)
	}
	err = os.WriteFile(versionFilePath(dbPath), []byte(strconv.Itoa(currentDatabaseVersion)), 0600)
	return errors.WithStack(err)
}

func versionFilePath(dbPath string) string {
	return filepath.Join(dbPath, "version")
}
