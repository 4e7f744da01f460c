package service

import "strings"

// 赛程源（football-data）与 Elo 源（clubelo）对同一家俱乐部叫法不同，
// 两侧都压缩成紧凑键后才能对上

// 只去纯组织后缀与符号；united/city 这类区分俱乐部的词必须保留
var teamNoiseWords = []string{
	" fc", "fc ", " afc", "afc ", " cf", "cf ",
	" hotspur", " wanderers",
	"&", ".", "-", "'",
}

// 两侧叫法不同的词收敛到同一个写法
var teamAliases = map[string]string{
	" utd":          " united",
	"manchester":    "man",
	"nottingham":    "nott",
	"wolverhampton": "wolves",
}

// NormalizeTeamName 球队名归一化：小写、去组织后缀与符号、统一别名、去空格。
// "Manchester United FC" 与 "Man Utd" 归一到同一个键
func NormalizeTeamName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	for _, w := range teamNoiseWords {
		s = strings.ReplaceAll(s, w, " ")
	}
	for from, to := range teamAliases {
		s = strings.ReplaceAll(s, from, to)
	}
	return strings.ReplaceAll(s, " ", "")
}
