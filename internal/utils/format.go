package utils

import (
	"fmt"
	"os"

	"golang.org/x/tools/imports"
)

// Format 格式化 Go 源码并整理 imports
func Format(path string, src []byte) ([]byte, error) {
	out, err := imports.Process(path, src, &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("格式化 %s 失败: %w", path, err)
	}
	return out, nil
}

// WriteFormat 格式化后写入文件
func WriteFormat(path string, src []byte) error {
	out, err := Format(path, src)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}
