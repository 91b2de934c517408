package model_test

import (
	"testing"

	"github.com/m-mizutani/hangar/pkg/domain/model"
)

func TestDetectArchiveKind(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected model.ArchiveKind
	}{
		{name: "zip", path: "/tmp/game.zip", expected: model.ArchiveZip},
		{name: "upper case zip", path: "/tmp/GAME.ZIP", expected: model.ArchiveZip},
		{name: "rar", path: "mod.rar", expected: model.ArchiveRar},
		{name: "mixed case rar", path: "mod.RaR", expected: model.ArchiveRar},
		{name: "7z", path: "pack.7z", expected: model.ArchiveSevenZip},
		{name: "binary", path: "setup.bin", expected: model.ArchiveUnsupported},
		{name: "tar.gz", path: "src.tar.gz", expected: model.ArchiveUnsupported},
		{name: "no extension", path: "README", expected: model.ArchiveUnsupported},
		{name: "zip in directory name only", path: "dir.zip/file", expected: model.ArchiveUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := model.DetectArchiveKind(tt.path)
			if got != tt.expected {
				t.Errorf("DetectArchiveKind(%q) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestDownloadState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    model.DownloadState
		expected bool
	}{
		{state: model.DownloadRegistered, expected: false},
		{state: model.DownloadTransferring, expected: false},
		{state: model.DownloadCompleted, expected: true},
		{state: model.DownloadFailed, expected: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}
