package io

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"scenetunes/internal/utils"
)

type LocalFSHandler struct {
	DataPath string
}

func MakeFileSystemHandler() (LocalFSHandler, error) {
	var handler LocalFSHandler
	homeDir, err := utils.GetScenetunesHomeDirectory()
	if err != nil {
		return handler, fmt.Errorf("utils.GetScenetunesHomeDirectory(). %w", err)
	}

	pathToData := homeDir + "/" + "data"

	err = utils.MakeSureFilePathExists(pathToData, "")
	if err != nil {
		return handler, fmt.Errorf(`utils.MakeSureFilePathExists(pathToData, ""). %w`, err)
	}

	handler.DataPath = pathToData

	return handler, nil
}

// MakeFileSystemHandlerAt roots the handler at an explicit directory
// instead of the scenetunes home. Used by tests.
func MakeFileSystemHandlerAt(dataPath string) (LocalFSHandler, error) {
	err := utils.MakeSureFilePathExists(dataPath, "")
	if err != nil {
		return LocalFSHandler{}, fmt.Errorf(`utils.MakeSureFilePathExists(dataPath, ""). %w`, err)
	}
	return LocalFSHandler{DataPath: dataPath}, nil
}

func (l LocalFSHandler) WriteBlob(key string, blob []byte) error {
	path := l.BlobPath(key)

	err := os.MkdirAll(filepath.Dir(path), 0764)
	if err != nil {
		return fmt.Errorf("os.MkdirAll(filepath.Dir(path), 0764). %w", err)
	}

	err = os.WriteFile(path, blob, 0764)
	if err != nil {
		return fmt.Errorf(`os.WriteFile(path, blob, 0764). %w`, err)
	}
	return nil
}

func (l LocalFSHandler) OpenBlob(key string) (io.ReadSeekCloser, int64, error) {
	path := l.BlobPath(key)

	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf(`os.Open(path). %w`, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf(`file.Stat(). %w`, err)
	}

	return file, info.Size(), nil
}

func (l LocalFSHandler) RemoveBlob(key string) error {
	err := os.Remove(l.BlobPath(key))
	if err != nil {
		return fmt.Errorf(`os.Remove(l.BlobPath(key)) %w`, err)
	}
	return nil

}

func (l LocalFSHandler) BlobPath(key string) string {
	return filepath.Join(l.DataPath, filepath.FromSlash(key))
}

func (l LocalFSHandler) GetStoragePath() string {
	return l.DataPath
}
