// utils/path.go - Path handling utilities
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

var (
	AppRootDir = "./.index-coordinator"
	LogsDir    = "./.index-coordinator/logs"
	CacheDir   = "./.index-coordinator/cache"
	DbDir      = "./.index-coordinator/cache/db"
	StateDir   = "./.index-coordinator/cache/state"
	IndexDir   = "./.index-coordinator/index"
)

// GetRootDir gets cross-platform root directory
// Returns paths like Windows: %USERPROFILE%/.appname, Linux/macOS: ~/.appname
func GetRootDir(appName string) (string, error) {
	var rootDir string

	switch runtime.GOOS {
	case "windows":
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			rootDir = filepath.Join(userProfile, "."+appName)
		} else if appData := os.Getenv("APPDATA"); appData != "" {
			rootDir = filepath.Join(appData, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			rootDir = filepath.Join(homeDir, "."+appName)
		}
	default:
		// XDG_CONFIG_HOME wins when set, otherwise ~/.appname
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" && runtime.GOOS != "darwin" {
			rootDir = filepath.Join(xdgConfig, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			rootDir = filepath.Join(homeDir, "."+appName)
		}
	}

	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return "", err
	}

	AppRootDir = rootDir
	return rootDir, nil
}

// ensureSubDir creates parent/name and returns it
func ensureSubDir(parent, name string) (string, error) {
	if _, err := os.Stat(parent); os.IsNotExist(err) {
		return "", fmt.Errorf("path %s does not exist", parent)
	}

	dir := filepath.Join(parent, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// GetLogDir gets log directory
func GetLogDir(rootPath string) (string, error) {
	logPath, err := ensureSubDir(rootPath, "logs")
	if err != nil {
		return "", err
	}
	LogsDir = logPath
	return logPath, nil
}

// GetCacheDir gets cache directory
func GetCacheDir(rootPath string) (string, error) {
	cachePath, err := ensureSubDir(rootPath, "cache")
	if err != nil {
		return "", err
	}
	CacheDir = cachePath
	return cachePath, nil
}

func GetCacheDbDir(cachePath string) (string, error) {
	dbPath, err := ensureSubDir(cachePath, "db")
	if err != nil {
		return "", err
	}
	DbDir = dbPath
	return dbPath, nil
}

// GetCacheStateDir holds the leveldb property store
func GetCacheStateDir(cachePath string) (string, error) {
	statePath, err := ensureSubDir(cachePath, "state")
	if err != nil {
		return "", err
	}
	StateDir = statePath
	return statePath, nil
}

func GetIndexDir(rootPath string) (string, error) {
	indexPath, err := ensureSubDir(rootPath, "index")
	if err != nil {
		return "", err
	}
	IndexDir = indexPath
	return indexPath, nil
}
