package Iservices

type IPromptBuilder interface {
	Build() string
}
