package wechat

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// EncodeXML 将参数编码为微信 v2 报文：<xml><k><![CDATA[v]]></k></xml>。
// 键按字典序输出，保证报文可复现。
func EncodeXML(params map[string]string) []byte {
	keys := make([]string, 0, len(params))
	for k := range params {
		if strings.TrimSpace(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("<xml>")
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("<%s><![CDATA[%s]]></%s>", k, params[k], k))
	}
	sb.WriteString("</xml>")
	return []byte(sb.String())
}

// DecodeXML 解析微信 v2 报文为扁平键值。
// 兼容 CDATA 与普通文本节点，未知标签原样收集。
func DecodeXML(body []byte) (map[string]string, error) {
	decoder := xml.NewDecoder(strings.NewReader(string(body)))
	params := make(map[string]string)

	var rootSeen bool
	var current string
	var value strings.Builder
	for {
		token, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode xml failed: %w", err)
		}
		switch element := token.(type) {
		case xml.StartElement:
			if !rootSeen {
				rootSeen = true
				continue
			}
			current = element.Name.Local
			value.Reset()
		case xml.CharData:
			if current != "" {
				value.Write(element)
			}
		case xml.EndElement:
			if element.Name.Local == current && current != "" {
				params[current] = value.String()
				current = ""
				value.Reset()
			}
		}
	}
	if !rootSeen {
		return nil, fmt.Errorf("decode xml failed: missing root element")
	}
	return params, nil
}
