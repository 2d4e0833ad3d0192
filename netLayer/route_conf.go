package netLayer

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/e1732a364fed/forwardproxy/utils"
	"go.uber.org/zap"
)

// LoadRules 解析规则文本, 每行格式为 "<block|direct|forward> <domain>".
//
// 空行和以 # 开头的行被忽略; 同一域名以第一次出现为准; 格式错误的行记录日志后跳过, 不会返回错误.
// 返回的 error 只来自 r 本身的读取.
func LoadRules(r io.Reader) (*RuleTable, error) {
	t := NewRuleTable()
	sc := bufio.NewScanner(r)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			if ce := utils.CanLogWarn("skip malformed rule line"); ce != nil {
				ce.Write(zap.Int("line", lineNum), zap.String("content", utils.Truncate(line, 80)))
			}
			continue
		}
		rule, err := ParseRule(fields[0])
		if err != nil {
			if ce := utils.CanLogWarn("skip rule line"); ce != nil {
				ce.Write(zap.Int("line", lineNum), zap.Error(err))
			}
			continue
		}
		if !t.Add(fields[1], rule) {
			if ce := utils.CanLogDebug("duplicated rule ignored"); ce != nil {
				ce.Write(zap.Int("line", lineNum), zap.String("domain", fields[1]))
			}
		}
	}
	return t, sc.Err()
}

// LoadRulesFile 若文件不存在, 返回 nil table 和 nil error, 并打印警告; 此时匹配总是返回默认规则.
func LoadRulesFile(fn string) (*RuleTable, error) {
	f, err := os.Open(fn)
	if err != nil {
		if os.IsNotExist(err) {
			if ce := utils.CanLogWarn("rules file not exist"); ce != nil {
				ce.Write(zap.String("file", fn))
			}
			return nil, nil
		}
		return nil, utils.ErrInErr{ErrDesc: "open rules file failed", ErrDetail: utils.ErrConfig, Data: err.Error()}
	}
	defer f.Close()

	t, err := LoadRules(f)
	if err != nil {
		return nil, utils.ErrInErr{ErrDesc: "read rules file failed", ErrDetail: utils.ErrConfig, Data: err.Error()}
	}
	if ce := utils.CanLogInfo("rules loaded"); ce != nil {
		ce.Write(zap.String("file", fn), zap.Int("count", t.Len()))
	}
	return t, nil
}
