package main

import (
	"flag"
	"log"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// 向常驻的训练表服务发送 SIGHUP，让其重新打开日志文件
func main() {
	pidFile := flag.String("pidfile", "olist.pid", "服务写入的pid文件")
	flag.Parse()

	data, err := os.ReadFile(*pidFile)
	if err != nil {
		log.Fatal("Failed to read pid file:", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		log.Fatal("Invalid pid:", err)
	}

	if err := syscall.Kill(pid, syscall.SIGHUP); err != nil {
		log.Fatal("Failed to send SIGHUP:", err)
	}
}
