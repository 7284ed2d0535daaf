package main

// Options is the root command. The struct tags are read by
// github.com/jessevdk/go-flags.
type Options struct {
	Config   string      `short:"f" long:"config" env:"COURSEGEN_CONFIG" description:"YAML config path"`
	Generate GenerateCmd `command:"generate" description:"Generate a course from a prompt pair and page images"`
	Continue ContinueCmd `command:"continue" description:"Write more lessons from a progressive carry-over"`
}

type GenerateCmd struct {
	Mode       string   `short:"m" long:"mode" choice:"single_shot" choice:"two_step" choice:"progressive" default:"single_shot" description:"Generation mode"`
	System     string   `long:"system" description:"System prompt text"`
	SystemFile string   `long:"system-file" description:"Read the system prompt from a file"`
	User       string   `long:"user" description:"User prompt text"`
	UserFile   string   `long:"user-file" description:"Read the user prompt from a file"`
	Images     []string `short:"i" long:"image" description:"Page image URL (http, https, data or gs); repeatable"`
	Model      string   `long:"model" description:"Model override"`
	MaxTokens  int      `long:"max-tokens" description:"Output token budget override"`
	Out        string   `short:"o" long:"out" description:"Write the result JSON here instead of stdout"`
}

type ContinueCmd struct {
	CarryOver   string `short:"c" long:"carry-over" required:"true" description:"JSON file holding a carry-over or a progressive result"`
	Prior       string `long:"prior" description:"JSON file holding lessons already written, used as a style sample"`
	CourseTitle string `long:"title" description:"Course title"`
	Targets     []int  `short:"t" long:"target" required:"true" description:"Outline index to write; repeatable"`
	Model       string `long:"model" description:"Model override"`
	MaxTokens   int    `long:"max-tokens" description:"Output token budget override"`
	Out         string `short:"o" long:"out" description:"Write the result JSON here instead of stdout"`
}

var options Options

func configPath() string { return options.Config }
