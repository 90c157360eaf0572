//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default 默认任务：显示帮助信息
func Default() {
	fmt.Println("StockDL 构建系统")
	fmt.Println("================")
	fmt.Println("可用任务:")
	fmt.Println("  mage build     - 构建所有二进制文件")
	fmt.Println("  mage test      - 运行所有测试")
	fmt.Println("  mage lint      - 运行代码检查")
	fmt.Println("  mage coverage  - 生成测试覆盖率报告")
	fmt.Println("  mage clean     - 清理构建产物")
}

// Build 构建所有二进制文件
func Build() error {
	mg.Deps(Clean)

	targets := []struct {
		name string
		path string
	}{
		{"stockdl", "./cmd/stockdl"},
		{"stockdl_web", "./cmd/stockdl_web"},
	}

	for _, target := range targets {
		fmt.Printf("📦 构建 %s...\n", target.name)
		output := filepath.Join("./dist", target.name)
		if runtime.GOOS == "windows" {
			output += ".exe"
		}

		cmd := exec.Command("go", "build", "-o", output, target.path)
		cmd.Env = append(os.Environ(), "CGO_ENABLED=0")

		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("构建 %s 失败: %v\n输出: %s", target.name, err, string(out))
		}
	}

	fmt.Println("🎉 所有组件构建完成!")
	return nil
}

// Test 运行所有测试
func Test() error {
	fmt.Println("🧪 运行测试...")
	return sh.RunV("go", "test", "./pkg/...", "-timeout=5m")
}

// Coverage 生成测试覆盖率报告
func Coverage() error {
	if err := sh.RunV("go", "test", "./pkg/...", "-coverprofile=coverage.out"); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-html=coverage.out", "-o", "coverage.html")
}

// Lint 运行代码检查
func Lint() error {
	if err := sh.RunV("go", "vet", "./..."); err != nil {
		return err
	}
	return sh.RunV("gofmt", "-l", ".")
}

// Clean 清理构建产物
func Clean() error {
	for _, f := range []string{"dist", "coverage.out", "coverage.html"} {
		if err := os.RemoveAll(f); err != nil {
			return err
		}
	}
	return nil
}
